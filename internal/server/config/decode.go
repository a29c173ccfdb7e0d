package config

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/dustin/go-humanize"
	"github.com/go-playground/validator/v10"
)

var ErrReDecodeDefaultConfig = errors.New("can not redecode default config")

var validate = validator.New(validator.WithRequiredStructEnabled())

// Decode reads the TOML document at path over the values already in
// config. The whole document is validated; on any error config is left
// unusable and must be discarded.
func Decode(config *Server, path string) error {
	md, err := toml.DecodeFile(path, config)
	if err != nil {
		return err
	}
	if undecoded := md.Undecoded(); len(undecoded) != 0 {
		return fmt.Errorf("unknown config key: %s", undecoded[0].String())
	}

	config.filePath, err = filepath.Abs(path)
	if err != nil {
		return err
	}

	return Validate(config)
}

// ReDecode loads a fresh config from the same file the old one came
// from, used by hot reload.
func ReDecode(config *Server, old *Server) error {
	if old.filePath == Default.filePath {
		return ErrReDecodeDefaultConfig
	}

	return Decode(config, old.filePath)
}

// Validate applies structural validation plus the cross-field checks
// the tag language cannot express. Nothing is applied partially: the
// first error rejects the document.
func Validate(config *Server) error {
	if err := validate.Struct(config); err != nil {
		return err
	}

	shares := map[string]bool{}
	for _, sh := range config.Shares {
		if shares[sh.Name] {
			return fmt.Errorf("share '%s' repeated", sh.Name)
		}
		shares[sh.Name] = true

		if sh.Quota != "" {
			if _, err := humanize.ParseBytes(sh.Quota); err != nil {
				return fmt.Errorf("share '%s': bad quota '%s': %w", sh.Name, sh.Quota, err)
			}
		}
	}

	users := map[string]bool{}
	for _, us := range config.Users {
		if users[us.Name] {
			return fmt.Errorf("user '%s' repeated", us.Name)
		}
		users[us.Name] = true
	}

	for i, rule := range config.Rules {
		if rule.Who != "*" && !users[rule.Who] {
			return fmt.Errorf("rule %d references unknown user '%s'", i, rule.Who)
		}
		for _, root := range rule.Roots {
			if root != "*" && !shares[root] {
				return fmt.Errorf("rule %d references unknown share '%s'", i, root)
			}
		}
	}

	return nil
}
