package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"picproof/pkg/capture"
)

func runVerify(args []string) int {
	fs := flag.NewFlagSet("verify", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var server string
	fs.StringVar(&server, "server", "http://localhost:8080", "server base url")

	if err := fs.Parse(args); err != nil {
		return 1
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "verify requires <capture-id>")
		return 1
	}
	id := fs.Arg(0)

	resp, err := http.Get(strings.TrimRight(server, "/") + "/api/v1/verify/" + id)
	if err != nil {
		fmt.Fprintf(os.Stderr, "verify: %v\n", err)
		return 1
	}
	defer resp.Body.Close()
	payload, _ := io.ReadAll(resp.Body)
	if resp.StatusCode == http.StatusNotFound {
		fmt.Printf("id=%s status=not_found\n", id)
		return 1
	}
	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "verify failed: %s %s\n", resp.Status, payload)
		return 1
	}

	var view struct {
		ID               string  `json:"id"`
		CreatedServerUTC string  `json:"created_server_utc"`
		DeviceTimeUTC    string  `json:"device_time_utc"`
		Lat              float64 `json:"lat"`
		Lon              float64 `json:"lon"`
		HashSHA256       string  `json:"hash_sha256"`
		PlaceName        string  `json:"place_name"`
		WebImageURL      string  `json:"web_image_url"`
		VerifyURL        string  `json:"verify_url"`
	}
	if err := json.Unmarshal(payload, &view); err != nil {
		fmt.Fprintf(os.Stderr, "decode response: %v\n", err)
		return 1
	}

	fmt.Printf("id=%s status=recorded\n", view.ID)
	fmt.Printf("recorded_at=%s device_time=%s\n", view.CreatedServerUTC, view.DeviceTimeUTC)
	fmt.Printf("lat=%.6f lon=%.6f\n", view.Lat, view.Lon)
	fmt.Printf("sha256=%s\n", view.HashSHA256)
	if view.PlaceName != "" {
		fmt.Printf("place=%s\n", view.PlaceName)
	}
	fmt.Printf("image=%s\n", view.WebImageURL)
	fmt.Printf("page=%s\n", view.VerifyURL)
	return 0
}

// runSign computes the digest and signature headers for an image without
// uploading it, for scripting against the API directly.
func runSign(args []string) int {
	fs := flag.NewFlagSet("sign", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var secret string
	var filePath string
	var lat float64
	var lon float64
	var deviceTime string

	fs.StringVar(&secret, "secret", "", "hmac signing secret")
	fs.StringVar(&filePath, "file", "", "image file path")
	fs.Float64Var(&lat, "lat", 0, "latitude in decimal degrees")
	fs.Float64Var(&lon, "lon", 0, "longitude in decimal degrees")
	fs.StringVar(&deviceTime, "device-time", "", "device capture time, RFC 3339 UTC (default now)")

	if err := fs.Parse(args); err != nil {
		return 1
	}
	if secret == "" || filePath == "" {
		fmt.Fprintln(os.Stderr, "sign requires --secret and --file")
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
	fmt.Printf("device_time_utc=%s\n", deviceTime)
	fmt.Printf("file_sha256=%s\n", signed.FileSHA256)
	fmt.Printf("x-timestamp=%s\n", signed.Timestamp)
	fmt.Printf("x-nonce=%s\n", signed.Nonce)
	fmt.Printf("x-sign=%s\n", signed.Signature)
	return 0
}
