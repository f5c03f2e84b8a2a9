package config

import (
	"github.com/dshills/codenotate/internal/annotator"
	"github.com/dshills/codenotate/internal/assembler"
	"github.com/dshills/codenotate/internal/backend"
	"github.com/dshills/codenotate/internal/chunker"
	"github.com/dshills/codenotate/internal/extractor"
	"github.com/dshills/codenotate/internal/language"
	"github.com/dshills/codenotate/internal/pipeline"
	"github.com/dshills/codenotate/internal/sink"
	"github.com/dshills/codenotate/internal/source"
	"github.com/dshills/codenotate/internal/validator"
)

// BackendConfig returns the backend factory settings
func (c *Config) BackendConfig() backend.Config {
	return backend.Config{
		Provider: c.Backend.Provider,
		Model:    c.Backend.Model,
		Endpoint: c.Backend.Endpoint,
		APIKey:   c.Backend.APIKey,
		Timeout:  c.GetTimeout(),
	}
}

// Registry returns the built-in policies with configured overrides applied
func (c *Config) Registry() *language.Registry {
	reg := language.Default()
	if c.Annotation.AllowDuplicateInsertionPoints == nil {
		return reg
	}
	for _, name := range reg.Names() {
		p, _ := reg.Lookup(name)
		reg.Register(p.WithDuplicateInsertionPoints(*c.Annotation.AllowDuplicateInsertionPoints))
	}
	return reg
}

// PipelineConfig returns the per-file processing settings
func (c *Config) PipelineConfig() pipeline.Config {
	policy, _ := assembler.ParseFailurePolicy(c.Assembly.FailurePolicy)
	return pipeline.Config{
		Chunker: chunker.Config{
			WholeFileThreshold: c.Chunking.WholeFileThreshold,
			Tiers:              c.Chunking.Tiers,
		},
		Extractor: extractor.Config{
			SampleThreshold: c.Context.SampleThreshold,
			HeadLines:       c.Context.HeadLines,
			TailLines:       c.Context.TailLines,
			Attempts:        c.Backend.Attempts,
			RetryDelay:      c.GetRetryDelay(),
			Temperature:     c.Backend.Temperature,
			MaxTokens:       c.Backend.MaxTokens,
		},
		Annotator: annotator.Config{
			Attempts:    c.Backend.Attempts,
			RetryDelay:  c.GetRetryDelay(),
			NumberLines: c.Annotation.NumberLines,
			Temperature: c.Backend.Temperature,
			MaxTokens:   c.Backend.MaxTokens,
		},
		Validator: validator.Config{
			MinRelevance:        c.Validation.MinRelevance,
			MinBusinessCoverage: c.Validation.MinBusinessCoverage,
			MinPurposeChars:     c.Validation.MinPurposeChars,
			MinCommentBlocks:    c.Validation.MinCommentBlocks,
			StrictRelevance:     c.Validation.StrictRelevance,
			StrictCompleteness:  c.Validation.StrictCompleteness,
			StrictBusinessTerms: c.Validation.StrictBusinessTerms,
		},
		Assembler: assembler.Config{
			Policy:           policy,
			SuccessThreshold: c.Assembly.SuccessThreshold,
			Header:           c.Assembly.Header,
			WrapWidth:        assembler.DefaultWrapWidth,
		},
		Workers: c.Annotation.Workers,
	}
}

// SourceConfig returns the discovery settings. Extensions are left to the
// runner, which derives them from the language policies.
func (c *Config) SourceConfig() source.Config {
	return source.Config{
		SkipPatterns: c.Scan.SkipPatterns,
		SkipDirs:     c.Scan.SkipDirs,
		MaxFileSize:  c.Scan.MaxFileSize,
	}
}

// SinkConfig returns the output settings
func (c *Config) SinkConfig() sink.Config {
	return sink.Config{
		Suffix:    c.Output.Suffix,
		OutputDir: c.Output.Dir,
		InPlace:   c.Output.InPlace,
		Overwrite: c.Output.Overwrite,
		Backup:    c.Output.Backup,
	}
}
