package tips

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
)

type bedrockConverseAPI interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// BedrockCompleter generates tips via the Bedrock Converse API.
type BedrockCompleter struct {
	api     bedrockConverseAPI
	modelID string
}

// NewBedrockCompleter creates a Bedrock-backed completer.
func NewBedrockCompleter(api bedrockConverseAPI, modelID string) (*BedrockCompleter, error) {
	if api == nil {
		return nil, errors.New("tips: bedrock converse client required")
	}
	if strings.TrimSpace(modelID) == "" {
		return nil, errors.New("tips: bedrock model id required")
	}
	return &BedrockCompleter{api: api, modelID: modelID}, nil
}

// Complete sends the prompt to Bedrock and returns the concatenated text
// blocks of the reply.
func (c *BedrockCompleter) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	systemBlocks := make([]brtypes.SystemContentBlock, 0, len(req.System))
	for _, block := range req.System {
		if strings.TrimSpace(block) == "" {
			continue
		}
		systemBlocks = append(systemBlocks, &brtypes.SystemContentBlockMemberText{Value: block})
	}

	input := &bedrockruntime.ConverseInput{
		ModelId: aws.String(c.modelID),
		System:  systemBlocks,
		Messages: []brtypes.Message{{
			Role: brtypes.ConversationRoleUser,
			Content: []brtypes.ContentBlock{
				&brtypes.ContentBlockMemberText{Value: req.Prompt},
			},
		}},
	}
	inference := &brtypes.InferenceConfiguration{}
	if req.MaxTokens > 0 {
		inference.MaxTokens = aws.Int32(req.MaxTokens)
	}
	if req.Temperature >= 0 {
		inference.Temperature = aws.Float32(req.Temperature)
	}
	input.InferenceConfig = inference

	out, err := c.api.Converse(ctx, input)
	if err != nil {
		return CompletionResponse{}, fmt.Errorf("tips: bedrock converse: %w", err)
	}

	msg, ok := out.Output.(*brtypes.ConverseOutputMemberMessage)
	if !ok || msg == nil {
		return CompletionResponse{}, errors.New("tips: bedrock returned no message output")
	}

	var sb strings.Builder
	for _, block := range msg.Value.Content {
		if text, ok := block.(*brtypes.ContentBlockMemberText); ok {
			sb.WriteString(text.Value)
		}
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return CompletionResponse{}, errors.New("tips: bedrock returned empty completion")
	}
	return CompletionResponse{Text: text}, nil
}

var _ Completer = (*BedrockCompleter)(nil)
