// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package shared

import (
	"context"
	"log/slog"

	"github.com/tombee/credence/internal/config"
	"github.com/tombee/credence/internal/log"
	"github.com/tombee/credence/pkg/adapter"
	"github.com/tombee/credence/pkg/adapter/httpbot"
	"github.com/tombee/credence/pkg/llm"
	"github.com/tombee/credence/pkg/llm/providers"
)

// LoadConfig loads the configuration named by --config, or the first one
// found by config.Find.
func LoadConfig() (*config.Config, error) {
	return config.Load(config.Find(GetConfigPath()))
}

// NewLogger builds the CLI logger from cfg and the CREDENCE_DEBUG family of
// variables. --verbose and --quiet win over both.
func NewLogger(cfg *config.Config) *slog.Logger {
	lc := log.DefaultConfig()
	lc.Level = cfg.Log.Level
	lc.Format = log.Format(cfg.Log.Format)
	lc.AddSource = cfg.Log.AddSource
	log.ApplyEnv(lc)
	if GetVerbose() && lc.Level != "trace" {
		lc.Level = "debug"
	}
	if GetQuiet() {
		lc.Level = "error"
	}
	return log.New(lc)
}

// NewClientFactory returns a function creating the LLM client described by
// cfg.LLM. Nothing is dialled until the engine first needs a client.
func NewClientFactory(cfg config.LLMConfig, logger *slog.Logger) func(context.Context) (llm.Client, error) {
	return func(ctx context.Context) (llm.Client, error) {
		provider, err := providers.New(cfg.Provider, providers.Config{
			APIKey:    cfg.APIKey,
			BaseURL:   cfg.BaseURL,
			Timeout:   cfg.Timeout,
			RateLimit: cfg.RateLimit,
			Logger:    logger,
		})
		if err != nil {
			return nil, err
		}
		if cfg.MaxRetries > 0 {
			provider = llm.NewRetryProvider(provider, llm.DefaultRetryConfig(cfg.MaxRetries))
		}

		opts := []llm.ClientOption{
			llm.WithModel(cfg.Model),
			llm.WithLogger(log.WithProvider(logger, provider.Name())),
		}
		if cfg.Temperature != nil {
			opts = append(opts, llm.WithTemperature(*cfg.Temperature))
		}
		if cfg.MaxTokens > 0 {
			opts = append(opts, llm.WithMaxTokens(cfg.MaxTokens))
		}
		return llm.NewClient(provider, opts...), nil
	}
}

// NewAdapterFactory returns a factory for HTTP chatbot adapters, one per run.
func NewAdapterFactory(cfg *config.Config, logger *slog.Logger) adapter.Factory {
	return httpbot.Factory(httpbot.Config{
		Endpoint:            cfg.Chatbot.Endpoint,
		Headers:             cfg.Chatbot.Headers,
		Timeout:             cfg.Chatbot.Timeout,
		ReplyField:          cfg.Chatbot.ReplyField,
		MetadataField:       cfg.Chatbot.MetadataField,
		Actions:             cfg.Chatbot.Actions,
		RateLimit:           cfg.Chatbot.RateLimit,
		NewClient:           NewClientFactory(cfg.LLM, logger),
		Model:               cfg.LLM.Model,
		UserSimulatorPrompt: cfg.Chatbot.UserSimulatorPrompt,
		Logger:              logger,
	})
}
