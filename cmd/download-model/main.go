// Standalone tool that downloads the all-mpnet-base-v2 sentence embedding
// model in ONNX format for in-process hugot embedding.
//
// Usage: download-model [dest]
//
// dest defaults to data/models, the default MODEL_DIR. The model lands in a
// subdirectory of dest, which is where archdistill looks for it.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/helixml/archdistill/infrastructure/provider"
	"github.com/knights-analytics/hugot"
)

func main() {
	dest := filepath.Join("data", "models")
	if len(os.Args) > 1 {
		dest = os.Args[1]
	}

	if provider.NewHugotEmbedding(dest).Available() {
		fmt.Printf("Model already present in %s\n", dest)
		return
	}

	if err := os.MkdirAll(dest, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "create directory: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Downloading %s to %s...\n", provider.LocalEmbeddingModel, dest)

	opts := hugot.NewDownloadOptions()
	opts.OnnxFilePath = "onnx/model.onnx"

	var (
		modelPath string
		err       error
	)
	delay := 2 * time.Second
	for i := range 4 {
		if i > 0 {
			fmt.Fprintf(os.Stderr, "retry in %s: %v\n", delay, err)
			time.Sleep(delay)
			delay *= 2
		}
		if modelPath, err = hugot.DownloadModel(provider.LocalEmbeddingModel, dest, opts); err == nil {
			break
		}
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "download model: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Model ready at %s\n", modelPath)
}
