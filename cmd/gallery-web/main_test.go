package main

import (
	"context"
	"testing"

	"github.com/fpang/gallery-sweep/internal/config"
)

func TestApplyFlags(t *testing.T) {
	cfg := config.Default()
	flags := rootCmd.Flags()
	for name, value := range map[string]string{
		"bind":   "127.0.0.1:9999",
		"bucket": "family-photos",
		"prefix": "camera/",
	} {
		if err := flags.Set(name, value); err != nil {
			t.Fatal(err)
		}
	}
	if err := applyFlags(rootCmd, &cfg); err != nil {
		t.Fatalf("applyFlags: %v", err)
	}
	if cfg.Web.Bind != "127.0.0.1:9999" || cfg.Library.Bucket != "family-photos" || cfg.Library.Prefix != "camera/" {
		t.Errorf("flags not applied: %+v", cfg)
	}
	if !cfg.UsesBucket() {
		t.Error("bucket flag should select the S3 backend")
	}
}

func TestHeadlessPrompterGrants(t *testing.T) {
	ok, err := headlessPrompter{}.Confirm(context.Background(), "Library access", "Allow?")
	if err != nil || !ok {
		t.Errorf("Confirm = (%v, %v)", ok, err)
	}
}
