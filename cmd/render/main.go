// Command render fetches an asset's annotations and writes the review overlay
// to disk: overlay.svg always, and annotated.png with the shapes burned into
// the media when the asset is a static image.
package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"lightbox/api/internal/annotator"
)

func main() {
	baseURL := flag.String("url", "http://localhost:8686", "API base URL")
	token := flag.String("token", os.Getenv("LIGHTBOX_TOKEN"), "bearer token (defaults to LIGHTBOX_TOKEN)")
	assetID := flag.String("asset", "", "asset id to render")
	revision := flag.Int("revision", 0, "revision number (0 means latest)")
	outDir := flag.String("out", ".", "output directory")
	flag.Parse()

	if *assetID == "" {
		log.Fatal("missing -asset")
	}
	if *token == "" {
		log.Fatal("missing -token (or set LIGHTBOX_TOKEN)")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	client := annotator.NewClient(*baseURL, annotator.StaticToken(*token), nil)
	session := annotator.NewSession(client, *assetID, annotator.Capabilities{
		RevisionHistory: true,
		Mentions:        false,
	})
	if err := session.Mount(ctx); err != nil {
		log.Fatalf("load asset %s: %v", *assetID, err)
	}
	defer session.Close()

	if *revision > 0 {
		if err := session.SwitchRevision(ctx, *revision); err != nil {
			log.Fatalf("switch to revision %d: %v", *revision, err)
		}
	}

	set := session.Store.Set()
	scene := annotator.BuildScene(session.Store, session.Capture, time.Now())
	log.Printf("asset %s revision %d: %d annotations", *assetID, set.RevisionNumber, len(scene.Shapes))

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		log.Fatalf("create output dir: %v", err)
	}

	svgPath := filepath.Join(*outDir, "overlay.svg")
	if err := writeOverlay(svgPath, scene); err != nil {
		log.Fatalf("write %s: %v", svgPath, err)
	}
	log.Printf("wrote %s", svgPath)

	mediaURL := set.RevisionFile
	if mediaURL == "" {
		mediaURL = session.Asset().MediaURL
	}
	if mediaURL == "" {
		log.Printf("asset has no media, skipping annotated.png")
		return
	}
	if annotator.IsVideoMedia(mediaURL) {
		log.Printf("video media, skipping annotated.png")
		return
	}

	img, err := fetchImage(ctx, mediaURL)
	if err != nil {
		log.Fatalf("fetch media: %v", err)
	}
	pngPath := filepath.Join(*outDir, "annotated.png")
	if err := writeAnnotated(pngPath, img, scene); err != nil {
		log.Fatalf("write %s: %v", pngPath, err)
	}
	log.Printf("wrote %s", pngPath)
}

func writeOverlay(path string, scene annotator.Scene) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := scene.WriteSVG(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeAnnotated(path string, media image.Image, scene annotator.Scene) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := annotator.RenderPNG(f, media, scene); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func fetchImage(ctx context.Context, mediaURL string) (image.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: unexpected status %d", mediaURL, resp.StatusCode)
	}
	img, _, err := image.Decode(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("decode media: %w", err)
	}
	return img, nil
}
