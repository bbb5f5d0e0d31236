package advisor

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/dvloznov/finsight/internal/aggregate"
	"github.com/dvloznov/finsight/internal/domain"
	"github.com/rs/zerolog"
	"google.golang.org/genai"
)

// DefaultModelName is used when no model is configured.
const DefaultModelName = "gemini-2.5-flash"

// promptTransactionCount is how many recent transactions the advice prompt embeds.
const promptTransactionCount = 10

// Generator is the part of the genai client the advisor calls.
// *genai.Models satisfies it.
type Generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Gemini is the Advisor backed by the Gemini API.
type Gemini struct {
	gen   Generator
	model string
	log   zerolog.Logger
	now   func() time.Time
}

// New returns the Offline advisor when apiKey is empty and a Gemini advisor
// otherwise. A client that cannot be built yields an advisor whose every
// call falls back to the unavailable result.
func New(ctx context.Context, apiKey, model string, log zerolog.Logger) Advisor {
	if strings.TrimSpace(apiKey) == "" {
		log.Warn().Msg("No AI credential configured, advisor running offline")
		return Offline{}
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		log.Error().Err(err).Msg("Failed to create genai client")
		return NewGemini(nil, model, log)
	}

	return NewGemini(client.Models, model, log)
}

// NewGemini creates a Gemini advisor over gen.
func NewGemini(gen Generator, model string, log zerolog.Logger) *Gemini {
	if model == "" {
		model = DefaultModelName
	}
	return &Gemini{
		gen:   gen,
		model: model,
		log:   log.With().Str("component", "advisor").Str("model", model).Logger(),
		now:   time.Now,
	}
}

var adviceSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"summary":     {Type: genai.TypeString},
		"tips":        {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
		"healthScore": {Type: genai.TypeNumber},
	},
	Required: []string{"summary", "tips", "healthScore"},
}

var fortuneSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"overview":     {Type: genai.TypeString},
		"fortuneScore": {Type: genai.TypeNumber},
		"luckyColor":   {Type: genai.TypeString},
		"luckyNumber":  {Type: genai.TypeString},
		"do":           {Type: genai.TypeString},
		"dont":         {Type: genai.TypeString},
	},
	Required: []string{"overview", "fortuneScore", "luckyColor", "luckyNumber", "do", "dont"},
}

// RequestAdvice implements Advisor.
func (g *Gemini) RequestAdvice(ctx context.Context, snap domain.Snapshot) AdviceResult {
	raw, err := g.generate(ctx, buildAdvicePrompt(snap), adviceSchema)
	if err != nil {
		g.log.Error().Err(err).Msg("Financial analysis failed")
		return UnavailableAdvice()
	}

	result, err := parseAdvice(raw)
	if err != nil {
		g.log.Error().Err(err).Str("raw_response", raw).Msg("Financial analysis returned an unusable response")
		return UnavailableAdvice()
	}
	return result
}

// RequestFortune implements Advisor.
func (g *Gemini) RequestFortune(ctx context.Context, sign domain.ZodiacSign) FortuneResult {
	raw, err := g.generate(ctx, buildFortunePrompt(sign, g.now()), fortuneSchema)
	if err != nil {
		g.log.Error().Err(err).Str("sign", sign.Name).Msg("Fortune request failed")
		return UnavailableFortune(sign)
	}

	result, err := parseFortune(raw)
	if err != nil {
		g.log.Error().Err(err).Str("sign", sign.Name).Str("raw_response", raw).Msg("Fortune request returned an unusable response")
		return UnavailableFortune(sign)
	}
	result.Sign = sign.Name
	return result
}

func (g *Gemini) generate(ctx context.Context, prompt string, schema *genai.Schema) (string, error) {
	if g.gen == nil {
		return "", fmt.Errorf("generate: no genai client")
	}

	resp, err := g.gen.GenerateContent(ctx, g.model, genai.Text(prompt), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   schema,
	})
	if err != nil {
		return "", fmt.Errorf("generate: generate content: %w", err)
	}

	rawText := resp.Text()
	if strings.TrimSpace(rawText) == "" {
		return "", fmt.Errorf("generate: empty response from model")
	}
	return rawText, nil
}

func buildAdvicePrompt(snap domain.Snapshot) string {
	recent := aggregate.RecentTransactions(snap.Transactions, promptTransactionCount)

	var lines strings.Builder
	for _, tx := range recent {
		fmt.Fprintf(&lines, "%s: %s %s (%s) - %s\n", tx.Date, tx.Type, tx.Amount.String(), tx.Category, tx.Note)
	}

	return "請作為一名專業的個人財務顧問，分析以下財務狀況並給予 3-5 個具體的理財建議。\n" +
		"請用繁體中文回答，並以 JSON 格式回傳。\n" +
		"healthScore 為 0 到 100 的財務健康分數。\n\n" +
		"當前總資產: " + aggregate.TotalBalance(snap.Accounts).String() + " TWD\n" +
		"近期交易紀錄:\n" + lines.String()
}

func buildFortunePrompt(sign domain.ZodiacSign, now time.Time) string {
	return "請作為一名專業的占星術與理財專家，為 " + sign.Name + " 提供今日 (" + now.Format("2006-01-02") + ") 的財運預測。\n" +
		"包含：財運總覽、指數 (0-100)、幸運色、幸運數字、理財建議 (do) 與應避免的事 (dont)。\n" +
		"請用繁體中文回答，並以 JSON 格式回傳。\n"
}

type adviceResponse struct {
	Summary     *string  `json:"summary"`
	Tips        []string `json:"tips"`
	HealthScore *float64 `json:"healthScore"`
}

func parseAdvice(raw string) (AdviceResult, error) {
	var resp adviceResponse
	if err := json.Unmarshal([]byte(cleanModelJSON(raw)), &resp); err != nil {
		return AdviceResult{}, fmt.Errorf("parseAdvice: unmarshal JSON: %w", err)
	}
	if resp.Summary == nil || resp.Tips == nil || resp.HealthScore == nil {
		return AdviceResult{}, fmt.Errorf("parseAdvice: missing required field")
	}
	return AdviceResult{
		Summary:     *resp.Summary,
		Tips:        resp.Tips,
		HealthScore: clampScore(*resp.HealthScore),
	}, nil
}

type fortuneResponse struct {
	Overview     *string         `json:"overview"`
	FortuneScore *float64        `json:"fortuneScore"`
	LuckyColor   *string         `json:"luckyColor"`
	LuckyNumber  json.RawMessage `json:"luckyNumber"`
	Do           *string         `json:"do"`
	Dont         *string         `json:"dont"`
}

func parseFortune(raw string) (FortuneResult, error) {
	var resp fortuneResponse
	if err := json.Unmarshal([]byte(cleanModelJSON(raw)), &resp); err != nil {
		return FortuneResult{}, fmt.Errorf("parseFortune: unmarshal JSON: %w", err)
	}
	if resp.Overview == nil || resp.FortuneScore == nil || resp.LuckyColor == nil || resp.Do == nil || resp.Dont == nil {
		return FortuneResult{}, fmt.Errorf("parseFortune: missing required field")
	}
	luckyNumber, err := decodeLuckyNumber(resp.LuckyNumber)
	if err != nil {
		return FortuneResult{}, fmt.Errorf("parseFortune: %w", err)
	}
	return FortuneResult{
		Overview:     *resp.Overview,
		FortuneScore: clampScore(*resp.FortuneScore),
		LuckyColor:   *resp.LuckyColor,
		LuckyNumber:  luckyNumber,
		Do:           *resp.Do,
		Dont:         *resp.Dont,
	}, nil
}

// decodeLuckyNumber accepts a string or, when the model ignores the schema, a number.
func decodeLuckyNumber(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", fmt.Errorf("missing luckyNumber")
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", fmt.Errorf("luckyNumber is neither string nor number")
	}
	return strconv.FormatFloat(n, 'f', -1, 64), nil
}

func clampScore(v float64) int {
	if math.IsNaN(v) {
		return 0
	}
	return int(math.Round(math.Max(0, math.Min(100, v))))
}

// cleanModelJSON strips Markdown fences and any text around the JSON object.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	// Handle ```json ... ``` or ``` ... ``` wrappers.
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
		s = strings.TrimSpace(s)
	}

	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}

	s = strings.TrimSpace(s)

	if start := strings.Index(s, "{"); start != -1 {
		if end := strings.LastIndex(s, "}"); end != -1 && end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}

	return s
}

var _ Advisor = (*Gemini)(nil)
