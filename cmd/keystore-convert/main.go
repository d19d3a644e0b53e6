// Command keystore-convert migrates legacy JSON keystores to canonical CBOR records.
//
// Settings come from flags, a YAML file given with --config, and KEYSTORE_* environment variables.
package main

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

func load(args []string) (Options, bool, error) {
	flags := pflag.NewFlagSet("keystore-convert", pflag.ContinueOnError)
	flags.String("config", "", "YAML configuration file")
	flags.StringP("algorithm", "a", "", "algorithm of the keystores: elgamal/secp256k1, schnorr/ed25519 or schnorr/secp256k1-taproot")
	flags.StringP("out", "o", ".", "output directory")
	flags.String("store", "", "bolt database to also store the records in")
	flags.BoolP("verbose", "v", false, "debug logging")
	if err := flags.Parse(args); err != nil {
		return Options{}, false, err
	}

	v := viper.New()
	v.SetEnvPrefix("keystore")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(flags); err != nil {
		return Options{}, false, err
	}
	if file := v.GetString("config"); file != "" {
		v.SetConfigFile(file)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Options{}, false, err
		}
	}

	var opts Options
	if err := v.Unmarshal(&opts); err != nil {
		return Options{}, false, err
	}
	if flags.NArg() > 0 {
		opts.Inputs = flags.Args()
	}
	return opts, v.GetBool("verbose"), nil
}

func main() {
	log := zerolog.New(zerolog.NewConsoleWriter()).With().Timestamp().Logger()

	opts, verbose, err := load(os.Args[1:])
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	if !verbose {
		log = log.Level(zerolog.InfoLevel)
	}

	converted, err := Convert(opts, log)
	if err != nil {
		log.Fatal().Err(err).Msg("conversion failed")
	}
	log.Info().Int("keystores", len(converted)).Str("out", opts.OutDir).Msg("done")
}
