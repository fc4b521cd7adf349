package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/aws/smithy-go"
	"go.opentelemetry.io/otel/trace"

	"shopstream/internal/domain"
	"shopstream/internal/infra/config"
	"shopstream/internal/infra/tracer"
)

// bedrockConverseAPI abstracts the Bedrock runtime methods for testability.
type bedrockConverseAPI interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
	ConverseStream(ctx context.Context, params *bedrockruntime.ConverseStreamInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseStreamOutput, error)
}

// BedrockProvider implements domain.StreamingLLMProvider and domain.Classifier
// via the AWS Bedrock Converse API.
type BedrockProvider struct {
	model           string
	classifierModel string
	client          bedrockConverseAPI
	logger          *slog.Logger
}

// NewBedrockProvider creates a Bedrock provider using the default AWS
// credential chain.
func NewBedrockProvider(cfg config.LLMConfig, logger *slog.Logger) (*BedrockProvider, error) {
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(region),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	classifier := cfg.ClassifierModel
	if classifier == "" {
		classifier = cfg.Model
	}

	return &BedrockProvider{
		model:           cfg.Model,
		classifierModel: classifier,
		client:          bedrockruntime.NewFromConfig(awsCfg),
		logger:          logger,
	}, nil
}

// newBedrockProviderWithClient creates a BedrockProvider with an injected
// client (for testing).
func newBedrockProviderWithClient(model, classifierModel string, client bedrockConverseAPI, logger *slog.Logger) *BedrockProvider {
	return &BedrockProvider{
		model:           model,
		classifierModel: classifierModel,
		client:          client,
		logger:          logger,
	}
}

// Chat implements domain.LLMProvider.
func (p *BedrockProvider) Chat(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	ctx, span := tracer.StartSpan(ctx, "llm.chat",
		trace.WithAttributes(tracer.StringAttr("llm.model", req.Model)),
	)
	defer span.End()

	if req.Model == "" {
		req.Model = p.model
	}

	output, err := p.client.Converse(ctx, toConverseInput(req))
	if err != nil {
		tracer.RecordError(span, err)
		return nil, mapBedrockError(err)
	}

	result := fromConverseOutput(output, req.Model)
	tracer.SetOK(span)
	p.logger.Debug("chat completed",
		"model", req.Model,
		"tool_calls", len(result.Message.ToolCalls),
		"tokens", result.Usage.TotalTokens,
	)
	return result, nil
}

// ChatStream implements domain.StreamingLLMProvider.
func (p *BedrockProvider) ChatStream(ctx context.Context, req domain.ChatRequest) (<-chan domain.StreamDelta, error) {
	if req.Model == "" {
		req.Model = p.model
	}

	ci := toConverseInput(req)
	output, err := p.client.ConverseStream(ctx, &bedrockruntime.ConverseStreamInput{
		ModelId:         ci.ModelId,
		Messages:        ci.Messages,
		System:          ci.System,
		InferenceConfig: ci.InferenceConfig,
		ToolConfig:      ci.ToolConfig,
	})
	if err != nil {
		return nil, mapBedrockError(err)
	}

	ch := make(chan domain.StreamDelta, 16)
	go func() {
		defer close(ch)
		stream := output.GetStream()
		defer stream.Close()

		for evt := range stream.Events() {
			delta := fromStreamEvent(evt)
			if delta == nil {
				continue
			}
			select {
			case ch <- *delta:
			case <-ctx.Done():
				return
			}
		}

		if err := stream.Err(); err != nil {
			p.logger.Error("bedrock stream terminated", "error", err)
			select {
			case ch <- domain.StreamDelta{Done: true}:
			case <-ctx.Done():
			}
		}
	}()

	return ch, nil
}

// Classify implements domain.Classifier with a single non-streaming call to
// the (smaller) classifier model.
func (p *BedrockProvider) Classify(ctx context.Context, system, message string) (string, error) {
	resp, err := p.Chat(ctx, domain.ChatRequest{
		Model:  p.classifierModel,
		System: system,
		Messages: []domain.Message{
			{Role: domain.RoleUser, Content: message, Timestamp: time.Now()},
		},
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrClassify, err)
	}
	return resp.Message.Content, nil
}

// Name implements domain.LLMProvider.
func (p *BedrockProvider) Name() string { return "bedrock" }

var (
	_ domain.StreamingLLMProvider = (*BedrockProvider)(nil)
	_ domain.Classifier           = (*BedrockProvider)(nil)
)

// --- Bedrock request/response conversion ---

func toConverseInput(req domain.ChatRequest) *bedrockruntime.ConverseInput {
	input := &bedrockruntime.ConverseInput{
		ModelId: aws.String(req.Model),
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	input.InferenceConfig = &types.InferenceConfiguration{
		MaxTokens: aws.Int32(int32(maxTokens)),
	}
	if req.Temperature > 0 {
		input.InferenceConfig.Temperature = aws.Float32(float32(req.Temperature))
	}

	if req.System != "" {
		input.System = []types.SystemContentBlock{
			&types.SystemContentBlockMemberText{Value: req.System},
		}
	}

	for _, m := range req.Messages {
		if m.Role == domain.RoleSystem {
			// Inline system turns ride on the request-level system prompt.
			input.System = append(input.System,
				&types.SystemContentBlockMemberText{Value: m.Content})
			continue
		}
		if msg := toBedrockMessage(m); msg != nil {
			input.Messages = append(input.Messages, *msg)
		}
	}

	if len(req.Tools) > 0 {
		input.ToolConfig = toBedrockToolConfig(req.Tools)
	}
	return input
}

func toBedrockMessage(m domain.Message) *types.Message {
	msg := &types.Message{}

	switch m.Role {
	case domain.RoleTool:
		msg.Role = types.ConversationRoleUser
		toolUseID := ""
		if len(m.ToolCalls) > 0 {
			toolUseID = m.ToolCalls[0].ID
		}
		msg.Content = []types.ContentBlock{
			&types.ContentBlockMemberToolResult{
				Value: types.ToolResultBlock{
					ToolUseId: aws.String(toolUseID),
					Content: []types.ToolResultContentBlock{
						&types.ToolResultContentBlockMemberText{Value: m.Content},
					},
				},
			},
		}

	case domain.RoleAssistant:
		msg.Role = types.ConversationRoleAssistant
		if m.Content != "" {
			msg.Content = append(msg.Content, &types.ContentBlockMemberText{Value: m.Content})
		}
		for _, tc := range m.ToolCalls {
			var inputDoc map[string]interface{}
			if len(tc.Input) > 0 {
				json.Unmarshal(tc.Input, &inputDoc)
			}
			if inputDoc == nil {
				inputDoc = map[string]interface{}{}
			}
			msg.Content = append(msg.Content, &types.ContentBlockMemberToolUse{
				Value: types.ToolUseBlock{
					ToolUseId: aws.String(tc.ID),
					Name:      aws.String(tc.Name),
					Input:     document.NewLazyDocument(inputDoc),
				},
			})
		}

	case domain.RoleUser:
		msg.Role = types.ConversationRoleUser
		msg.Content = []types.ContentBlock{
			&types.ContentBlockMemberText{Value: m.Content},
		}

	default:
		return nil
	}
	return msg
}

func toBedrockToolConfig(tools []domain.ToolSchema) *types.ToolConfiguration {
	var bedrockTools []types.Tool
	for _, t := range tools {
		var schema map[string]interface{}
		if len(t.InputSchema) > 0 {
			json.Unmarshal(t.InputSchema, &schema)
		}
		if schema == nil {
			schema = map[string]interface{}{"type": "object"}
		}
		bedrockTools = append(bedrockTools, &types.ToolMemberToolSpec{
			Value: types.ToolSpecification{
				Name:        aws.String(t.Name),
				Description: aws.String(t.Description),
				InputSchema: &types.ToolInputSchemaMemberJson{
					Value: document.NewLazyDocument(schema),
				},
			},
		})
	}
	return &types.ToolConfiguration{Tools: bedrockTools}
}

func fromConverseOutput(output *bedrockruntime.ConverseOutput, model string) *domain.ChatResponse {
	now := time.Now()
	result := &domain.ChatResponse{Model: model, CreatedAt: now}

	if output.Usage != nil {
		in := int(aws.ToInt32(output.Usage.InputTokens))
		out := int(aws.ToInt32(output.Usage.OutputTokens))
		result.Usage = domain.Usage{PromptTokens: in, CompletionTokens: out, TotalTokens: in + out}
	}

	msg := domain.Message{Role: domain.RoleAssistant, Timestamp: now}
	if outMsg, ok := output.Output.(*types.ConverseOutputMemberMessage); ok {
		for _, block := range outMsg.Value.Content {
			switch b := block.(type) {
			case *types.ContentBlockMemberText:
				msg.Content = b.Value
			case *types.ContentBlockMemberToolUse:
				msg.ToolCalls = append(msg.ToolCalls, domain.ToolCall{
					ID:    aws.ToString(b.Value.ToolUseId),
					Name:  aws.ToString(b.Value.Name),
					Input: marshalDocument(b.Value.Input),
				})
			}
		}
	}
	result.Message = msg
	return result
}

// marshalDocument converts a Bedrock document.Interface to json.RawMessage.
func marshalDocument(doc document.Interface) json.RawMessage {
	if doc == nil {
		return json.RawMessage("{}")
	}
	var v interface{}
	if err := doc.UnmarshalSmithyDocument(&v); err != nil {
		return json.RawMessage("{}")
	}
	data, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage("{}")
	}
	return data
}

func fromStreamEvent(evt types.ConverseStreamOutput) *domain.StreamDelta {
	switch e := evt.(type) {
	case *types.ConverseStreamOutputMemberContentBlockDelta:
		switch d := e.Value.Delta.(type) {
		case *types.ContentBlockDeltaMemberText:
			return &domain.StreamDelta{Text: d.Value}
		case *types.ContentBlockDeltaMemberToolUse:
			return &domain.StreamDelta{ToolInput: aws.ToString(d.Value.Input)}
		}
		return nil

	case *types.ConverseStreamOutputMemberContentBlockStart:
		if start, ok := e.Value.Start.(*types.ContentBlockStartMemberToolUse); ok {
			return &domain.StreamDelta{
				ToolUse: &domain.ToolCall{
					ID:   aws.ToString(start.Value.ToolUseId),
					Name: aws.ToString(start.Value.Name),
				},
			}
		}
		return nil

	case *types.ConverseStreamOutputMemberMetadata:
		delta := &domain.StreamDelta{Done: true}
		if e.Value.Usage != nil {
			in := int(aws.ToInt32(e.Value.Usage.InputTokens))
			out := int(aws.ToInt32(e.Value.Usage.OutputTokens))
			delta.Usage = &domain.Usage{PromptTokens: in, CompletionTokens: out, TotalTokens: in + out}
		}
		return delta

	case *types.ConverseStreamOutputMemberMessageStop:
		return &domain.StreamDelta{Done: true}

	default:
		return nil
	}
}

// --- Error mapping ---

func mapBedrockError(err error) error {
	if err == nil {
		return nil
	}

	msg := err.Error()

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		switch {
		case code == "ThrottlingException" || code == "TooManyRequestsException":
			return fmt.Errorf("%w: %s", domain.ErrRateLimit, msg)
		case code == "AccessDeniedException" || code == "UnrecognizedClientException":
			return fmt.Errorf("%w: %s", domain.ErrAuthInvalid, msg)
		case code == "ValidationException" && strings.Contains(msg, "too long"):
			return fmt.Errorf("%w: %s", domain.ErrContextOverflow, msg)
		case code == "ModelNotReadyException" || code == "ServiceUnavailableException" ||
			code == "InternalServerException":
			return fmt.Errorf("%w: %s", domain.ErrGenerate, msg)
		}
	}

	return domain.WrapOp("bedrock", err)
}
