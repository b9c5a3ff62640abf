package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"neurod/internal/chat"
	"neurod/internal/httpapi"
)

func (a *app) chatBackend() (chat.Backend, error) {
	c := a.cfg.Chat
	switch c.Backend {
	case "llama":
		return chat.NewLlamaBackend(chat.LlamaConfig{
			ModelPath:   c.Llama.ModelPath,
			ContextSize: c.Llama.ContextSize,
			Threads:     c.Llama.Threads,
			MaxTokens:   c.Llama.MaxTokens,
			Temperature: c.Llama.Temperature,
		})
	case "openai", "":
		if c.APIKey == "" {
			a.log.Warn().Msg("OPENROUTER_API_KEY not set; chat requests will fail with 503")
		}
		return chat.NewOpenAIBackend(chat.OpenAIConfig{
			BaseURL:        c.BaseURL,
			APIKey:         c.APIKey,
			Model:          c.Model,
			Timeout:        time.Duration(c.TimeoutSeconds) * time.Second,
			ConnectTimeout: time.Duration(c.ConnectTimeoutSeconds) * time.Second,
			Retries:        c.Retries,
			RetryDelay:     time.Duration(c.RetryDelayMillis) * time.Millisecond,
			RateLimit:      c.RateLimit,
			Burst:          c.Burst,
		}), nil
	}
	return nil, fmt.Errorf("chat: unknown backend %q", c.Backend)
}

func (a *app) chatCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "chat", Short: "NeuroPath AI assistant proxy"}

	var (
		sf      serveFlags
		backend string
		model   string
		baseURL string
	)
	serve := &cobra.Command{
		Use:     "serve",
		Short:   "Serve POST /chat",
		Example: "  neurod chat serve --addr :5100\n  neurod chat serve --backend llama",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sf.apply(cmd, &a.cfg, &a.cfg.Chat.CORS)
			fs := cmd.Flags()
			if fs.Changed("backend") {
				a.cfg.Chat.Backend = backend
			}
			if fs.Changed("model") {
				a.cfg.Chat.Model = model
			}
			if fs.Changed("base-url") {
				a.cfg.Chat.BaseURL = baseURL
			}
			b, err := a.chatBackend()
			if err != nil {
				return err
			}
			svc := chat.New(b, &a.log)
			a.configureHTTP(a.cfg.Chat.CORS)
			return a.listenAndServe(cmd.Context(), "chat", httpapi.NewChatMux(svc, httpapi.Options{}))
		},
	}
	sf.register(serve)
	serve.Flags().StringVar(&backend, "backend", "", "Completion backend: openai|llama")
	serve.Flags().StringVar(&model, "model", "", "Model id sent to the OpenAI-compatible endpoint")
	serve.Flags().StringVar(&baseURL, "base-url", "", "OpenAI-compatible API base URL")

	cmd.AddCommand(serve)
	return cmd
}
