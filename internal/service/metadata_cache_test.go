package service

import (
	"bytes"
	"context"
	"encoding/binary"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gagliardetto/solana-go"

	"tradewithme/internal/models"
)

type stubReader struct {
	data  []byte
	calls int
}

func (r *stubReader) AccountData(ctx context.Context, account solana.PublicKey) ([]byte, error) {
	r.calls++
	return r.data, nil
}

func metadataAccountBytes(mint solana.PublicKey, name, symbol, uri string) []byte {
	data := []byte{4}
	data = append(data, solana.NewWallet().PublicKey().Bytes()...)
	data = append(data, mint.Bytes()...)
	for _, s := range []string{name, symbol, uri} {
		var lenBuf [4]byte
		binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(s)))
		data = append(data, lenBuf[:]...)
		data = append(data, s...)
	}
	return data
}

func pngFixture(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 10, 10))
	for i := 0; i < 10; i++ {
		img.Set(i, i, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode fixture: %v", err)
	}
	return buf.Bytes()
}

func TestMetadataCacheReadThrough(t *testing.T) {
	mint := solana.NewWallet().PublicKey()

	imageBytes := pngFixture(t)
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()
	mux.HandleFunc("/image.png", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(imageBytes)
	})
	mux.HandleFunc("/meta.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"image": "` + srv.URL + `/image.png"}`))
	})

	repo := newStubMetadataRepo()
	reader := &stubReader{data: metadataAccountBytes(mint, "Cool Token\x00\x00", "COOL\x00", srv.URL+"/meta.json")}

	cache, err := NewMetadataCache(context.Background(), repo, reader, srv.Client(), nil)
	if err != nil {
		t.Fatalf("NewMetadataCache: %v", err)
	}

	md, err := cache.TokenMetadata(context.Background(), mint.String())
	if err != nil {
		t.Fatalf("TokenMetadata: %v", err)
	}
	if md.Name == nil || *md.Name != "Cool Token" {
		t.Fatalf("name = %v, want Cool Token (NUL padding trimmed)", md.Name)
	}
	if md.Symbol == nil || *md.Symbol != "COOL" {
		t.Fatalf("symbol = %v", md.Symbol)
	}
	if len(md.Image) == 0 {
		t.Fatal("expected a thumbnail to be stored")
	}
	if len(repo.inserted) != 1 {
		t.Fatalf("inserted = %d rows, want 1", len(repo.inserted))
	}

	// Second lookup is served from the repository, not the chain.
	if _, err := cache.TokenMetadata(context.Background(), mint.String()); err != nil {
		t.Fatalf("second TokenMetadata: %v", err)
	}
	if reader.calls != 1 {
		t.Fatalf("chain reads = %d, want 1", reader.calls)
	}
}

func TestMetadataCachePreloadsKnownMints(t *testing.T) {
	mint := solana.NewWallet().PublicKey()
	repo := newStubMetadataRepo()
	name := "Persisted"
	repo.rows[mint.String()] = &models.TokenMetadata{MintAddress: mint.String(), Name: &name}

	reader := &stubReader{}
	cache, err := NewMetadataCache(context.Background(), repo, reader, nil, nil)
	if err != nil {
		t.Fatalf("NewMetadataCache: %v", err)
	}

	md, err := cache.TokenMetadata(context.Background(), mint.String())
	if err != nil {
		t.Fatalf("TokenMetadata: %v", err)
	}
	if md.Name == nil || *md.Name != "Persisted" {
		t.Fatalf("name = %v, want Persisted", md.Name)
	}
	if reader.calls != 0 {
		t.Fatalf("chain reads = %d, want 0", reader.calls)
	}
}
