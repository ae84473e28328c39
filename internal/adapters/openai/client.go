package openai

import (
    "context"
    "encoding/json"
    "errors"
    "strings"

    openai "github.com/openai/openai-go/v2"
    "github.com/openai/openai-go/v2/option"
    "github.com/openai/openai-go/v2/shared"
    "github.com/rs/zerolog"

    "github.com/djtchess/jiraSages2/internal/config"
    "github.com/djtchess/jiraSages2/internal/domain"
)

type Client struct {
    key   string
    model string
    cli   openai.Client
    log   zerolog.Logger
}

func NewClient(cfg config.Config, log zerolog.Logger) *Client {
    model := cfg.OpenAIModel
    if strings.TrimSpace(model) == "" { model = "gpt-4.1-mini" }
    cli := openai.NewClient(option.WithAPIKey(cfg.OpenAIKey))
    return &Client{key: cfg.OpenAIKey, model: model, cli: cli, log: log}
}

// SprintDigest turns the sprint scorecard and burnup into a short
// review text for the team.
func (c *Client) SprintDigest(ctx context.Context, kpis domain.KpiSummary, burnup domain.Burnup) (string, error) {
    if strings.TrimSpace(c.key) == "" { return "", errors.New("openai: missing key") }
    c.log.Info().Str("model", c.model).Int64("sprint", kpis.SprintID).Msg("openai SprintDigest call")

    payload := map[string]any{"kpis": kpis, "burnup": burnup}
    userContent := ""
    if b, err := json.Marshal(payload); err == nil { userContent = string(b) }

    params := openai.ChatCompletionNewParams{
        Model: shared.ChatModel(c.model),
        Messages: []openai.ChatCompletionMessageParamUnion{
            openai.SystemMessage("You are a senior agile coach. Given the sprint commitment KPIs and the burnup series, write a concise sprint review: commitment respected or not, notable scope changes, done vs capacity, and one or two suggested actions."),
            openai.UserMessage(userContent),
        },
    }
    resp, err := c.cli.Chat.Completions.New(ctx, params)
    if err != nil { return "", err }
    if len(resp.Choices) == 0 { return "", errors.New("openai: no choices") }
    return resp.Choices[0].Message.Content, nil
}
