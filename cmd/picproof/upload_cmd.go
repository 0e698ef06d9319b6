package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"picproof/pkg/capture"
)

func runUpload(args []string) int {
	fs := flag.NewFlagSet("upload", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var server string
	var apiKey string
	var secret string
	var filePath string
	var lat float64
	var lon float64
	var deviceTime string
	var tzOffsetMin int
	var provider string
	var deviceModel string
	var appVersion string

	fs.StringVar(&server, "server", "http://localhost:8080", "server base url")
	fs.StringVar(&apiKey, "api-key", "", "device api key")
	fs.StringVar(&secret, "secret", "", "hmac signing secret")
	fs.StringVar(&filePath, "file", "", "image file path")
	fs.Float64Var(&lat, "lat", 0, "latitude in decimal degrees")
	fs.Float64Var(&lon, "lon", 0, "longitude in decimal degrees")
	fs.StringVar(&deviceTime, "device-time", "", "device capture time, RFC 3339 UTC (default now)")
	fs.IntVar(&tzOffsetMin, "tz-offset-min", 0, "device timezone offset in minutes")
	fs.StringVar(&provider, "provider", "gps", "location provider")
	fs.StringVar(&deviceModel, "device-model", "", "device model")
	fs.StringVar(&appVersion, "app-version", "", "app version")

	if err := fs.Parse(args); err != nil {
		return 1
	}
	if apiKey == "" || secret == "" || filePath == "" {
		fmt.Fprintln(os.Stderr, "upload requires --api-key, --secret and --file")
		return 1
	}
	if deviceTime == "" {
		deviceTime = time.Now().UTC().Format(time.RFC3339)
	}

	image, err := os.ReadFile(filePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read image: %v\n", err)
		return 1
	}

	signed := capture.SignUpload([]byte(secret), image, deviceTime, lat, lon, nil)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("image", filepath.Base(filePath))
	if err != nil {
		fmt.Fprintf(os.Stderr, "build request: %v\n", err)
		return 1
	}
	if _, err := fw.Write(image); err != nil {
		fmt.Fprintf(os.Stderr, "build request: %v\n", err)
		return 1
	}
	fields := map[string]string{
		"device_time_utc": deviceTime,
		"tz_offset_min":   strconv.Itoa(tzOffsetMin),
		"lat":             strconv.FormatFloat(lat, 'f', 6, 64),
		"lon":             strconv.FormatFloat(lon, 'f', 6, 64),
		"provider":        provider,
		"device_model":    deviceModel,
		"app_version":     appVersion,
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			fmt.Fprintf(os.Stderr, "build request: %v\n", err)
			return 1
		}
	}
	mw.Close()

	req, err := http.NewRequest(http.MethodPost, strings.TrimRight(server, "/")+"/api/v1/upload", &body)
	if err != nil {
		fmt.Fprintf(os.Stderr, "build request: %v\n", err)
		return 1
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "ApiKey "+apiKey)
	req.Header.Set("X-Timestamp", signed.Timestamp)
	req.Header.Set("X-Nonce", signed.Nonce)
	req.Header.Set("X-Sign", signed.Signature)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "upload: %v\n", err)
		return 1
	}
	defer resp.Body.Close()
	payload, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "upload failed: %s %s\n", resp.Status, payload)
		return 1
	}

	var out struct {
		ID        string `json:"id"`
		VerifyURL string `json:"verify_url"`
	}
	if err := json.Unmarshal(payload, &out); err != nil {
		fmt.Fprintf(os.Stderr, "decode response: %v\n", err)
		return 1
	}
	fmt.Printf("id=%s\n", out.ID)
	fmt.Printf("verify_url=%s\n", out.VerifyURL)
	fmt.Printf("file_sha256=%s\n", signed.FileSHA256)
	return 0
}
