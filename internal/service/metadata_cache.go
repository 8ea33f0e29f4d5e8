package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"tradewithme/internal/chain"
	"tradewithme/internal/imaging"
	"tradewithme/internal/models"
	"tradewithme/internal/repository"
)

const maxImageBytes = 8 << 20

type accountReader interface {
	AccountData(ctx context.Context, account solana.PublicKey) ([]byte, error)
}

// MetadataCache is a read-through cache over the token_metadata table.
// Mints already persisted are served from Postgres; unknown mints are
// resolved against the on-chain Metaplex account, their artwork downsized
// to a 64x64 thumbnail, and written back.
type MetadataCache struct {
	Repo   repository.MetadataRepository
	Chain  accountReader
	HTTP   *http.Client
	Logger *zap.Logger

	mu    sync.RWMutex
	known map[string]struct{}
}

// NewMetadataCache preloads the set of persisted mint addresses so cache
// hits never touch the chain.
func NewMetadataCache(ctx context.Context, repo repository.MetadataRepository, reader accountReader, httpClient *http.Client, logger *zap.Logger) (*MetadataCache, error) {
	addrs, err := repo.ListKnownMintAddresses(ctx)
	if err != nil {
		return nil, fmt.Errorf("preload known mints: %w", err)
	}
	known := make(map[string]struct{}, len(addrs))
	for _, a := range addrs {
		known[a] = struct{}{}
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &MetadataCache{
		Repo:   repo,
		Chain:  reader,
		HTTP:   httpClient,
		Logger: logger,
		known:  known,
	}, nil
}

func (m *MetadataCache) TokenMetadata(ctx context.Context, mintAddress string) (*models.TokenMetadata, error) {
	m.mu.RLock()
	_, hit := m.known[mintAddress]
	m.mu.RUnlock()

	if hit {
		entity, err := m.Repo.GetTokenMetadata(ctx, mintAddress)
		if err == nil {
			return entity, nil
		}
		if m.Logger != nil {
			m.Logger.Warn("metadata cache miss against database",
				zap.String("mint", mintAddress), zap.Error(err))
		}
	}

	entity, err := m.fetchFromChain(ctx, mintAddress)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.known[mintAddress] = struct{}{}
	m.mu.Unlock()

	if err := m.Repo.InsertTokenMetadata(ctx, entity); err != nil && m.Logger != nil {
		m.Logger.Warn("persist token metadata failed",
			zap.String("mint", mintAddress), zap.Error(err))
	}
	return entity, nil
}

func (m *MetadataCache) fetchFromChain(ctx context.Context, mintAddress string) (*models.TokenMetadata, error) {
	mint, err := solana.PublicKeyFromBase58(mintAddress)
	if err != nil {
		return nil, fmt.Errorf("parse mint address: %w", err)
	}
	metadataAccount, err := chain.DeriveMetadataAddress(mint)
	if err != nil {
		return nil, err
	}
	data, err := m.Chain.AccountData(ctx, metadataAccount)
	if err != nil {
		return nil, fmt.Errorf("fetch metadata account: %w", err)
	}
	md, err := chain.DecodeMetadata(data)
	if err != nil {
		return nil, fmt.Errorf("decode metadata for %s: %w", mintAddress, err)
	}

	entity := &models.TokenMetadata{
		MintAddress: mintAddress,
		Name:        optional(md.Name),
		Symbol:      optional(md.Symbol),
		URI:         optional(md.URI),
	}

	if md.URI != "" {
		if raw := m.fetchImage(ctx, md.URI); raw != nil {
			if thumb, err := imaging.Thumbnail(raw); err == nil {
				entity.Image = thumb
			} else if m.Logger != nil {
				m.Logger.Warn("thumbnail failed", zap.String("mint", mintAddress), zap.Error(err))
			}
		}
	}
	return entity, nil
}

// fetchImage follows the metadata URI, which conventionally serves a JSON
// document with an "image" field pointing at the actual artwork.
func (m *MetadataCache) fetchImage(ctx context.Context, uri string) []byte {
	body, contentType, err := m.get(ctx, uri)
	if err != nil {
		return nil
	}
	if !strings.Contains(contentType, "application/json") {
		return nil
	}

	var doc struct {
		Image string `json:"image"`
	}
	if err := json.Unmarshal(body, &doc); err != nil || doc.Image == "" {
		return nil
	}

	img, _, err := m.get(ctx, doc.Image)
	if err != nil {
		return nil
	}
	return img
}

func (m *MetadataCache) get(ctx context.Context, uri string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := m.HTTP.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("GET %s: status %d", uri, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, "", err
	}
	return body, resp.Header.Get("Content-Type"), nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
