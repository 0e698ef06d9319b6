package main

import (
	"fmt"
	"os"
	"path/filepath"
)

func run(args []string) int {
	if len(args) < 2 {
		usage(args)
		return 1
	}

	switch args[1] {
	case "upload":
		return runUpload(args[2:])
	case "verify":
		return runVerify(args[2:])
	case "sign":
		return runSign(args[2:])
	}

	usage(args)
	return 1
}

func usage(args []string) {
	name := "picproof"
	if len(args) > 0 && args[0] != "" {
		name = filepath.Base(args[0])
	}
	fmt.Fprintf(os.Stderr, "usage:\n")
	fmt.Fprintf(os.Stderr, "  %s upload --server <url> --api-key <key> --secret <hmac-secret> --file <image> --lat <deg> --lon <deg> [--device-time <rfc3339>] [--provider <name>] [--device-model <model>] [--app-version <version>]\n", name)
	fmt.Fprintf(os.Stderr, "  %s verify --server <url> <capture-id>\n", name)
	fmt.Fprintf(os.Stderr, "  %s sign --secret <hmac-secret> --file <image> --lat <deg> --lon <deg> [--device-time <rfc3339>]\n", name)
}
