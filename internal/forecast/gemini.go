package forecast

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"google.golang.org/genai"

	"swiftroute/internal/ticket"
)

const DefaultModel = "gemini-3-flash-preview"

// generator is the slice of *genai.Models used here.
type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiPredictor asks a Gemini model for a structured occupancy estimate.
type GeminiPredictor struct {
	models generator
	model  string
}

func NewGeminiPredictor(ctx context.Context, apiKey, model string) (*GeminiPredictor, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	return newGeminiPredictor(client.Models, model), nil
}

func newGeminiPredictor(g generator, model string) *GeminiPredictor {
	if model == "" {
		model = DefaultModel
	}
	return &GeminiPredictor{models: g, model: model}
}

var responseSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"predictedCount": {Type: genai.TypeNumber},
		"reason":         {Type: genai.TypeString},
	},
	Required: []string{"predictedCount", "reason"},
}

func (g *GeminiPredictor) Predict(ctx context.Context, req Request) (Result, error) {
	prompt, err := Prompt(req)
	if err != nil {
		return Result{}, err
	}
	resp, err := g.models.GenerateContent(ctx, g.model,
		[]*genai.Content{{Role: "user", Parts: []*genai.Part{{Text: prompt}}}},
		&genai.GenerateContentConfig{
			ResponseMIMEType: "application/json",
			ResponseSchema:   responseSchema,
		})
	if err != nil {
		return Result{}, fmt.Errorf("%w: generate content: %v", ErrUnavailable, err)
	}
	return parseResponse(resp)
}

func parseResponse(resp *genai.GenerateContentResponse) (Result, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return Result{}, fmt.Errorf("%w: empty response", ErrUnavailable)
	}
	var sb strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if p != nil {
			sb.WriteString(p.Text)
		}
	}
	var out struct {
		PredictedCount *float64 `json:"predictedCount"`
		Reason         string   `json:"reason"`
	}
	if err := json.Unmarshal([]byte(sb.String()), &out); err != nil {
		return Result{}, fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}
	if out.PredictedCount == nil {
		return Result{}, fmt.Errorf("%w: response missing predictedCount", ErrUnavailable)
	}
	return Result{PredictedCount: int(math.Round(*out.PredictedCount)), Reason: out.Reason}, nil
}

// Prompt renders the question sent to the model. The walk-in estimate is left
// to the model; nothing random is simulated locally.
func Prompt(req Request) (string, error) {
	names := make([]string, len(req.Stops))
	for i, s := range req.Stops {
		names[i] = s.Name
	}
	tickets := req.Tickets
	if tickets == nil {
		tickets = []ticket.Ticket{}
	}
	booked, err := json.Marshal(tickets)
	if err != nil {
		return "", fmt.Errorf("encode tickets: %w", err)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Analyze the following real-time bus data for %q.\n", req.BusName)
	fmt.Fprintf(&b, "Route: %s.\n", strings.Join(names, " -> "))
	fmt.Fprintf(&b, "Target Destination: %s.\n", req.Target.Name)
	if req.Capacity > 0 {
		fmt.Fprintf(&b, "Seating capacity: %d.\n", req.Capacity)
	}
	fmt.Fprintf(&b, "Current booked tickets: %s.\n\n", booked)
	fmt.Fprintf(&b, "Predict the total number of passengers likely to be on the bus when it reaches %q. ", req.Target.Name)
	b.WriteString(`Consider that existing tickets for that stop or further will be there, and estimate some random "unbooked" walk-in passengers (usually 10-20% of capacity).`)
	return b.String(), nil
}
