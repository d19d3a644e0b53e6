package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/taurusgroup/multi-party-keystore/pkg/algo"
	"github.com/taurusgroup/multi-party-keystore/pkg/legacy"
	"github.com/taurusgroup/multi-party-keystore/pkg/store"
	"github.com/taurusgroup/multi-party-keystore/pkg/wire"
)

// Options are the settings of one conversion run.
type Options struct {
	Algorithm string   `mapstructure:"algorithm"`
	Inputs    []string `mapstructure:"inputs"`
	// OutDir receives one <name>.cbor record and one <name>.xpub file per input.
	OutDir string `mapstructure:"out"`
	// Store is an optional bolt database the records are also written to.
	Store string `mapstructure:"store"`
}

// Converted describes the output for one legacy file.
type Converted struct {
	Name   string
	Record string
	XPub   string
}

// partyName returns the file name of path without its extension.
func partyName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Convert migrates every input file, and writes the canonical records.
// Nothing is written unless every input migrates.
func Convert(opts Options, log zerolog.Logger) ([]Converted, error) {
	a, err := algo.Parse(opts.Algorithm)
	if err != nil {
		return nil, err
	}
	if len(opts.Inputs) == 0 {
		return nil, fmt.Errorf("no input file")
	}
	if opts.OutDir == "" {
		return nil, fmt.Errorf("no output directory")
	}

	type migrated struct {
		name   string
		record []byte
		xpub   string
	}
	all := make([]migrated, 0, len(opts.Inputs))
	seen := make(map[string]string, len(opts.Inputs))
	for _, path := range opts.Inputs {
		name := partyName(path)
		if other, ok := seen[name]; ok {
			return nil, fmt.Errorf("%s and %s map to the same party %s", other, path, name)
		}
		seen[name] = path

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		ks, err := legacy.Migrate(data, a)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		record, err := wire.EncodeKeystore(ks)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		xpub, err := ks.ExtendedPublicKey()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		log.Debug().Str("file", path).Str("party", name).Stringer("id", ks.ID()).Msg("migrated")
		all = append(all, migrated{name: name, record: record, xpub: xpub})
	}

	if err = os.MkdirAll(opts.OutDir, 0o700); err != nil {
		return nil, err
	}
	var db *store.Store
	if opts.Store != "" {
		if db, err = store.Open(opts.Store); err != nil {
			return nil, err
		}
		defer db.Close()
	}

	out := make([]Converted, 0, len(all))
	for _, m := range all {
		c := Converted{
			Name:   m.name,
			Record: filepath.Join(opts.OutDir, m.name+".cbor"),
			XPub:   m.xpub,
		}
		if err = os.WriteFile(c.Record, m.record, 0o600); err != nil {
			return nil, err
		}
		if err = os.WriteFile(filepath.Join(opts.OutDir, m.name+".xpub"), []byte(m.xpub+"\n"), 0o644); err != nil {
			return nil, err
		}
		if db != nil {
			ks, err := wire.DecodeKeystore(m.record, a)
			if err != nil {
				return nil, err
			}
			if err = db.Put(m.name, ks); err != nil {
				return nil, err
			}
		}
		log.Info().Str("party", m.name).Str("record", c.Record).Str("xpub", c.XPub).Msg("converted")
		out = append(out, c)
	}
	return out, nil
}
