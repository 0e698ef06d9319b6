package domain

// PolicyInput carries the capture metadata a deployment-supplied policy may
// inspect before the upload is accepted. The image bytes are deliberately not
// part of the input; policy runs after signature verification and before any
// durable write.
type PolicyInput struct {
	Lat         float64  `json:"lat"`
	Lon         float64  `json:"lon"`
	AccuracyM   *float64 `json:"accuracy_m,omitempty"`
	Provider    string   `json:"provider,omitempty"`
	IsMock      bool     `json:"is_mock"`
	DeviceModel string   `json:"device_model"`
	AndroidAPI  int      `json:"android_api"`
	AppVersion  string   `json:"app_version"`
}

type PolicyDeny struct {
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

type PolicyResult struct {
	Allow bool         `json:"allow"`
	Deny  []PolicyDeny `json:"deny,omitempty"`
}
