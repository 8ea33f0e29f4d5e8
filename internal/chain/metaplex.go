package chain

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
)

// Metadata is the subset of the Metaplex token-metadata account this
// service uses. On-chain strings are fixed-width and NUL-padded; the
// decoder trims the padding.
type Metadata struct {
	Mint   solana.PublicKey
	Name   string
	Symbol string
	URI    string
}

// DeriveMetadataAddress returns the PDA of the Metaplex metadata account
// for a mint: ["metadata", program id, mint] under the metadata program.
func DeriveMetadataAddress(mint solana.PublicKey) (solana.PublicKey, error) {
	seeds := [][]byte{
		[]byte("metadata"),
		solana.TokenMetadataProgramID.Bytes(),
		mint.Bytes(),
	}
	addr, _, err := solana.FindProgramAddress(seeds, solana.TokenMetadataProgramID)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("derive metadata address: %w", err)
	}
	return addr, nil
}

// DecodeMetadata reads the borsh-encoded head of a metadata account:
// key (1 byte), update authority (32), mint (32), then three
// length-prefixed strings (name, symbol, uri).
func DecodeMetadata(data []byte) (Metadata, error) {
	const header = 1 + 32 + 32
	if len(data) < header {
		return Metadata{}, fmt.Errorf("metadata account too short: %d bytes", len(data))
	}

	var md Metadata
	copy(md.Mint[:], data[33:65])

	offset := header
	for _, field := range []*string{&md.Name, &md.Symbol, &md.URI} {
		value, next, err := readBorshString(data, offset)
		if err != nil {
			return Metadata{}, err
		}
		*field = strings.TrimRight(value, "\x00")
		offset = next
	}
	return md, nil
}

func readBorshString(data []byte, offset int) (string, int, error) {
	if len(data) < offset+4 {
		return "", 0, fmt.Errorf("truncated string length at offset %d", offset)
	}
	n := int(binary.LittleEndian.Uint32(data[offset : offset+4]))
	offset += 4
	if n < 0 || len(data) < offset+n {
		return "", 0, fmt.Errorf("truncated string body at offset %d (len %d)", offset, n)
	}
	return string(data[offset : offset+n]), offset + n, nil
}
