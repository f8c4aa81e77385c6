package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
)

// DefaultMaxIterations bounds the tool loop when the config leaves it unset.
const DefaultMaxIterations = 50

// SubQueryTool is the built-in tool that delegates to the sub-model.
const SubQueryTool = "sub_query"

// ErrIterationLimit is returned when the tool loop ends without an answer.
var ErrIterationLimit = errors.New("iteration limit reached without a final answer")

const systemPrompt = `You are microcode, an efficient terminal coding agent.
Answer the current task using the working directory, time and previous
conversation given in the task. Call the available tools when they help.
Use sub_query to hand a focused sub-question, with any context it needs, to
a secondary model and fold its answer into yours. Reply in concise Markdown.`

const subQueryPrompt = "Answer the question precisely and concisely using only the provided context."

// openRouterProgram answers tasks through an OpenAI-compatible chat
// completions endpoint, OpenRouter by default.
type openRouterProgram struct {
	ref    Ref
	cfg    Config
	client openai.Client
	logf   func(string, ...any)

	mu      sync.Mutex
	servers []string
	tools   map[string][]Tool
	closed  bool
}

// NewOpenRouterLoader returns a Loader building OpenRouter programs. logf
// receives retry and verbose diagnostics; it may be nil.
func NewOpenRouterLoader(logf func(string, ...any)) Loader {
	return func(ctx context.Context, ref Ref, cfg Config) (Program, error) {
		return newOpenRouterProgram(ref, cfg, logf)
	}
}

func newOpenRouterProgram(ref Ref, cfg Config, logf func(string, ...any)) (*openRouterProgram, error) {
	cfg.Model = NormalizeModelID(cfg.Model)
	if cfg.Model == "" {
		return nil, errors.New("model is required")
	}
	cfg.SubModel = NormalizeModelID(cfg.SubModel)
	if cfg.SubModel == "" {
		cfg.SubModel = cfg.Model
	}

	opts := []option.RequestOption{
		option.WithMaxRetries(0),
		option.WithHeader("X-Title", "microcode"),
		option.WithHeader("HTTP-Referer", "https://github.com/batalabs/microcode"),
	}
	if ref.Repo != "" {
		opts = append(opts, option.WithHeader("X-Microcode-Program", ref.Repo+"@"+ref.Rev))
	}
	if cfg.APIBase != "" {
		u, err := url.Parse(cfg.APIBase)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("invalid api base %q", cfg.APIBase)
		}
		opts = append(opts, option.WithBaseURL(cfg.APIBase))
	}

	if logf == nil {
		logf = func(string, ...any) {}
	}
	return &openRouterProgram{
		ref:    ref,
		cfg:    cfg,
		client: openai.NewClient(opts...),
		logf:   logf,
		tools:  make(map[string][]Tool),
	}, nil
}

func (p *openRouterProgram) Config() Config {
	return p.cfg
}

func (p *openRouterProgram) RegisterTools(server string, tools []Tool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.tools[server]; !ok {
		p.servers = append(p.servers, server)
	}
	p.tools[server] = append([]Tool(nil), tools...)
}

func (p *openRouterProgram) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return nil
}

// toolIndex snapshots registered tools in registration order.
func (p *openRouterProgram) toolIndex() ([]Tool, map[string]Tool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var list []Tool
	byName := make(map[string]Tool)
	for _, s := range p.servers {
		for _, t := range p.tools[s] {
			if _, dup := byName[t.Name]; dup {
				continue
			}
			list = append(list, t)
			byName[t.Name] = t
		}
	}
	return list, byName
}

func (p *openRouterProgram) Invoke(ctx context.Context, task string) (Result, error) {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return Result{}, errors.New("program is closed")
	}

	key := strings.TrimSpace(os.Getenv(APIKeyEnv))
	if key == "" {
		return Result{}, ErrNoCredentials
	}
	reqOpts := []option.RequestOption{option.WithAPIKey(key)}

	list, byName := p.toolIndex()
	toolParams := append(convertTools(list), subQueryParam())

	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(systemPrompt),
		openai.UserMessage(task),
	}

	limit := p.cfg.MaxIterations
	if limit <= 0 {
		limit = DefaultMaxIterations
	}
	for i := 0; i < limit; i++ {
		resp, err := p.complete(ctx, p.cfg.Model, messages, toolParams, reqOpts)
		if err != nil {
			return Result{}, fmt.Errorf("completion: %w", err)
		}
		if len(resp.Choices) == 0 {
			return Result{}, errors.New("completion: empty response")
		}
		msg := resp.Choices[0].Message
		if len(msg.ToolCalls) == 0 {
			return Result{Answer: msg.Content}, nil
		}

		messages = append(messages, msg.ToParam())
		for _, tc := range msg.ToolCalls {
			if p.cfg.Verbose {
				p.logf("agent: iteration %d calls %s", i+1, tc.Function.Name)
			}
			out := p.runTool(ctx, byName, tc.Function.Name, tc.Function.Arguments, reqOpts)
			messages = append(messages, openai.ToolMessage(p.truncate(out), tc.ID))
		}
	}
	return Result{}, fmt.Errorf("%w (%d)", ErrIterationLimit, limit)
}

func (p *openRouterProgram) complete(
	ctx context.Context,
	model string,
	messages []openai.ChatCompletionMessageParamUnion,
	tools []openai.ChatCompletionToolUnionParam,
	reqOpts []option.RequestOption,
) (*openai.ChatCompletion, error) {
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(DisplayModelID(model)),
		Messages: messages,
	}
	if len(tools) > 0 {
		params.Tools = tools
	}
	if p.cfg.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(p.cfg.MaxTokens))
	}
	return withRetry(ctx, p.logf, func() (*openai.ChatCompletion, error) {
		return p.client.Chat.Completions.New(ctx, params, reqOpts...)
	})
}

// runTool executes one tool call. Failures are reported back to the model as
// text rather than aborting the task.
func (p *openRouterProgram) runTool(ctx context.Context, byName map[string]Tool, name, rawArgs string, reqOpts []option.RequestOption) string {
	args := map[string]any{}
	if strings.TrimSpace(rawArgs) != "" {
		if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
			return fmt.Sprintf("error: invalid arguments for %s: %v", name, err)
		}
	}

	if name == SubQueryTool {
		out, err := p.subQuery(ctx, args, reqOpts)
		if err != nil {
			p.logf("agent: sub_query: %v", err)
			return "error: " + err.Error()
		}
		return out
	}

	t, ok := byName[name]
	if !ok || t.Call == nil {
		return fmt.Sprintf("error: unknown tool %q", name)
	}
	out, err := t.Call(ctx, args)
	if err != nil {
		p.logf("agent: tool %s: %v", name, err)
		return "error: " + err.Error()
	}
	return out
}

func (p *openRouterProgram) subQuery(ctx context.Context, args map[string]any, reqOpts []option.RequestOption) (string, error) {
	question, _ := args["question"].(string)
	if strings.TrimSpace(question) == "" {
		return "", errors.New("question is required")
	}
	user := question
	if extra, _ := args["context"].(string); strings.TrimSpace(extra) != "" {
		user = "Context:\n" + p.truncate(extra) + "\n\nQuestion:\n" + question
	}
	resp, err := p.complete(ctx, p.cfg.SubModel, []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(subQueryPrompt),
		openai.UserMessage(user),
	}, nil, reqOpts)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("empty response")
	}
	return resp.Choices[0].Message.Content, nil
}

// truncate bounds s to MaxOutputChars bytes on a rune boundary.
func (p *openRouterProgram) truncate(s string) string {
	n := p.cfg.MaxOutputChars
	if n <= 0 || len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + fmt.Sprintf("\n... [truncated %d chars]", len(s)-cut)
}

func convertTools(tools []Tool) []openai.ChatCompletionToolUnionParam {
	var out []openai.ChatCompletionToolUnionParam
	for _, t := range tools {
		params := openai.FunctionParameters(t.Parameters)
		if params == nil {
			params = openai.FunctionParameters{
				"type":       "object",
				"properties": map[string]any{},
			}
		}
		out = append(out, openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
			Name:        t.Name,
			Description: openai.String(t.Description),
			Parameters:  params,
		}))
	}
	return out
}

func subQueryParam() openai.ChatCompletionToolUnionParam {
	return openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
		Name:        SubQueryTool,
		Description: openai.String("Ask the sub-model a focused question. Include any context it needs; it cannot see this conversation."),
		Parameters: openai.FunctionParameters{
			"type": "object",
			"properties": map[string]any{
				"question": map[string]any{"type": "string", "description": "The question to answer"},
				"context":  map[string]any{"type": "string", "description": "Material the answer depends on"},
			},
			"required": []string{"question"},
		},
	})
}
