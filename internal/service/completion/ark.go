package completion

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
)

// ArkBackend runs completions through an eino chain: chat template followed
// by the configured chat model. The chain is compiled once at startup.
type ArkBackend struct {
	chain compose.Runnable[map[string]any, *schema.Message]
}

// NewArkBackend compiles the prompt chain around the supplied chat model.
func NewArkBackend(ctx context.Context, chatModel model.ChatModel) (*ArkBackend, error) {
	template := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(template)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("compile completion chain: %w", err)
	}

	return &ArkBackend{chain: runnable}, nil
}

// Complete runs the chain to a single message.
func (b *ArkBackend) Complete(ctx context.Context, p Prompt, params Params) (*schema.Message, error) {
	response, err := b.chain.Invoke(ctx, chainInput(p), chainOptions(params)...)
	if err != nil {
		return nil, Classify(err)
	}
	return response, nil
}

// Stream runs the chain in streaming mode.
func (b *ArkBackend) Stream(ctx context.Context, p Prompt, params Params) (*schema.StreamReader[*schema.Message], error) {
	stream, err := b.chain.Stream(ctx, chainInput(p), chainOptions(params)...)
	if err != nil {
		return nil, Classify(err)
	}
	return stream, nil
}

func chainInput(p Prompt) map[string]any {
	return map[string]any{
		"system":  p.System,
		"history": p.History,
		"query":   p.Query,
	}
}

func chainOptions(params Params) []compose.Option {
	modelOpts := make([]model.Option, 0, 2)
	if params.Temperature != nil {
		modelOpts = append(modelOpts, model.WithTemperature(*params.Temperature))
	}
	if params.MaxTokens != nil {
		modelOpts = append(modelOpts, model.WithMaxTokens(*params.MaxTokens))
	}
	if len(modelOpts) == 0 {
		return nil
	}
	return []compose.Option{compose.WithChatModelOption(modelOpts...)}
}
