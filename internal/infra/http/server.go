package http

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"picproof/internal/config"
	"picproof/internal/domain"
	"picproof/internal/infra/crypto"
	"picproof/internal/infra/db"
	"picproof/internal/infra/geocode"
	"picproof/internal/infra/identity"
	"picproof/internal/infra/imaging"
	"picproof/internal/infra/policy"
	"picproof/internal/infra/qr"
	"picproof/internal/infra/ratelimit"
	"picproof/internal/infra/replay"
	"picproof/internal/infra/storage"
	"picproof/internal/usecase"

	"github.com/gin-gonic/gin"
)

type Server struct {
	cfg   config.Config
	store *db.Store
	r     *gin.Engine

	uploadUC  *usecase.AcceptUpload
	resolveUC *usecase.ResolveVerification
	editUC    *usecase.AdminEdit

	captures usecase.CaptureRepository
	audits   usecase.AuditRepository

	apiKey      string
	adminAPIKey string
	mapsAPIKey  string

	rateLimiter       domain.RateLimiter
	rateLimitRequests int
	rateLimitWindow   time.Duration

	htmlReady bool
}

// NewServer wires the full dependency graph from configuration: storage
// namespaces, the repositories, the replay guard and capture policy when
// configured, and the three usecases behind the routes.
func NewServer(cfg config.Config, store *db.Store) (*Server, error) {
	r := gin.New()
	r.Use(gin.Recovery())

	s := &Server{cfg: cfg, store: store, r: r}
	if err := s.initDeps(); err != nil {
		return nil, err
	}
	s.loadTemplates()
	s.routes()
	return s, nil
}

type ServerDeps struct {
	Upload   *usecase.AcceptUpload
	Resolve  *usecase.ResolveVerification
	Edit     *usecase.AdminEdit
	Captures usecase.CaptureRepository
	Audits   usecase.AuditRepository

	APIKey      string
	AdminAPIKey string
	MapsAPIKey  string

	RateLimiter       domain.RateLimiter
	RateLimitRequests int
	RateLimitWindow   time.Duration
}

// NewServerWithDeps builds a server over pre-wired dependencies. Tests use
// this to swap in fakes without touching postgres or the filesystem.
func NewServerWithDeps(cfg config.Config, deps ServerDeps) *Server {
	r := gin.New()
	r.Use(gin.Recovery())

	s := &Server{
		cfg:               cfg,
		r:                 r,
		uploadUC:          deps.Upload,
		resolveUC:         deps.Resolve,
		editUC:            deps.Edit,
		captures:          deps.Captures,
		audits:            deps.Audits,
		apiKey:            deps.APIKey,
		adminAPIKey:       deps.AdminAPIKey,
		mapsAPIKey:        deps.MapsAPIKey,
		rateLimiter:       deps.RateLimiter,
		rateLimitRequests: deps.RateLimitRequests,
		rateLimitWindow:   deps.RateLimitWindow,
	}
	s.loadTemplates()
	s.routes()
	return s
}

func (s *Server) initDeps() error {
	s.apiKey = s.cfg.APIKey
	s.adminAPIKey = s.cfg.AdminAPIKey
	s.mapsAPIKey = s.cfg.GoogleMapsAPIKey

	artifacts, err := storage.NewStore(s.cfg.StorageDir)
	if err != nil {
		return err
	}

	captures := db.NewCaptureRepository(nil)
	audits := db.NewAuditRepository(nil)
	if s.store != nil {
		captures = db.NewCaptureRepository(s.store.DB)
		audits = db.NewAuditRepository(s.store.DB)
	}
	s.captures = captures
	s.audits = audits

	verifier := crypto.NewVerifier([]byte(s.cfg.HMACSecret), s.cfg.MaxSkew(), nil)
	qrGen := qr.NewGenerator(artifacts)

	s.uploadUC = &usecase.AcceptUpload{
		Crypto:    verifier,
		IDs:       identity.NewGenerator(),
		Captures:  captures,
		Artifacts: artifacts,
		Web:       imaging.NewWebCopier(s.cfg.WebMaxSide, s.cfg.WebJPEGQuality),
		QR:        qrGen,
		Nonces:    s.buildNonceStore(),
		Policy:    s.buildPolicy(),
		BaseURL:   s.cfg.PublicBaseURL,
		ReplayTTL: s.cfg.ReplayTTL(),
	}
	s.resolveUC = &usecase.ResolveVerification{
		Captures:       captures,
		QR:             qrGen,
		Geocoder:       s.buildGeocoder(),
		BaseURL:        s.cfg.PublicBaseURL,
		GeocodeTimeout: s.cfg.GeocodeTimeout(),
	}
	s.editUC = &usecase.AdminEdit{Captures: captures}

	s.initRateLimit()
	return nil
}

func (s *Server) buildNonceStore() domain.NonceStore {
	switch s.cfg.ReplayGuard {
	case "memory":
		return replay.NewMemoryStore(nil)
	case "redis":
		store, err := replay.NewRedisStore(s.cfg.RedisAddr, s.cfg.RedisPassword, s.cfg.RedisDB)
		if err != nil {
			slog.Warn("redis replay guard unavailable, falling back to memory", "error", err)
			return replay.NewMemoryStore(nil)
		}
		return store
	default:
		return nil
	}
}

func (s *Server) buildPolicy() usecase.PolicyEngine {
	if s.cfg.PolicyPath == "" {
		return nil
	}
	engine, err := policy.NewEngineFromPath(context.Background(), s.cfg.PolicyPath)
	if err != nil {
		slog.Error("capture policy failed to load, uploads will not be policy-checked", "path", s.cfg.PolicyPath, "error", err)
		return nil
	}
	return engine
}

func (s *Server) buildGeocoder() domain.Geocoder {
	var providers []domain.Geocoder
	if s.cfg.GoogleMapsAPIKey != "" {
		providers = append(providers, geocode.NewGoogleProvider(s.cfg.GoogleMapsAPIKey, s.cfg.GeocodeLanguage, s.cfg.GeocodeTimeout()))
	}
	providers = append(providers, geocode.NewNominatimProvider(s.cfg.GeocodeLanguage, s.cfg.GeocodeTimeout()))
	return geocode.NewCached(geocode.NewChain(providers...), time.Hour)
}

func (s *Server) initRateLimit() {
	if s.cfg.RateLimitRequests <= 0 {
		return
	}
	if s.cfg.RedisAddr != "" {
		if limiter, err := ratelimit.NewRedisLimiter(s.cfg.RedisAddr, s.cfg.RedisPassword, s.cfg.RedisDB, nil); err == nil {
			s.rateLimiter = limiter
		}
	}
	if s.rateLimiter == nil {
		s.rateLimiter = ratelimit.NewMemoryLimiter(nil)
	}
	s.rateLimitRequests = s.cfg.RateLimitRequests
	s.rateLimitWindow = s.cfg.RateLimitWindow()
}

// loadTemplates registers the verification page templates when the directory
// exists. Without them the HTML route answers with the JSON view instead.
func (s *Server) loadTemplates() {
	dir := s.cfg.TemplatesDir
	if dir == "" {
		return
	}
	pattern := filepath.Join(dir, "*.html")
	matches, err := filepath.Glob(pattern)
	if err != nil || len(matches) == 0 {
		slog.Warn("no html templates found, serving json verification pages", "dir", dir)
		return
	}
	s.r.LoadHTMLGlob(pattern)
	s.htmlReady = true
}

func (s *Server) routes() {
	s.r.GET("/healthz", s.handleHealthz)

	s.r.GET("/verify/:id", s.handleVerifyPage)

	if dir := s.cfg.StorageDir; dir != "" {
		if _, err := os.Stat(dir); err == nil {
			s.r.Static("/storage/web", filepath.Join(dir, storage.NamespaceWeb))
			s.r.Static("/storage/qr", filepath.Join(dir, storage.NamespaceQR))
		}
	}

	v1 := s.r.Group("/api/v1")
	{
		v1.POST("/upload", s.handleUpload)
		v1.GET("/verify/:id", s.handleVerifyJSON)

		admin := v1.Group("/admin")
		{
			admin.GET("/captures", s.handleAdminListCaptures)
			admin.GET("/captures/:id", s.handleAdminGetCapture)
			admin.PATCH("/captures/:id", s.handleAdminEditCapture)
			admin.GET("/captures/:id/audit", s.handleAdminListAudit)
		}
	}

	s.r.NoRoute(s.handleNoRoute)
}

func (s *Server) Run() error {
	return s.r.Run(s.cfg.HTTPAddr)
}
