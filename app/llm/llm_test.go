package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/lysyi3m/threat-comb/app/article"
)

type fakeModel struct {
	loadErr     error
	countErr    error
	completions []string
	completeErr error
	prompts     []string
	perToken    int
}

func (f *fakeModel) Load(context.Context) error { return f.loadErr }

func (f *fakeModel) CountTokens(_ context.Context, text string) (int, error) {
	if f.countErr != nil {
		return 0, f.countErr
	}
	per := f.perToken
	if per == 0 {
		per = 4
	}
	return utf8.RuneCountInString(text) / per, nil
}

func (f *fakeModel) Complete(_ context.Context, prompt string, _ Params) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.completeErr != nil {
		return "", f.completeErr
	}
	if len(f.completions) == 0 {
		return "", nil
	}
	out := f.completions[0]
	f.completions = f.completions[1:]
	return out, nil
}

func TestParseCompletion_EmbeddedObject(t *testing.T) {
	text := `blah blah {"threat_score": 82, "threat_vector": "bomb", "reasons": ["a","b","c","d","e"]} trailing junk`

	v, err := ParseCompletion(text)
	if err != nil {
		t.Fatalf("Expected parse to succeed, got %v", err)
	}
	if v.ThreatScore != 82 {
		t.Errorf("Expected score 82, got %v", v.ThreatScore)
	}
	if v.ThreatLevel != article.ThreatCritical {
		t.Errorf("Expected CRITICAL, got %s", v.ThreatLevel)
	}
	if v.ThreatVector != article.VectorOther {
		t.Errorf("Expected OTHER, got %s", v.ThreatVector)
	}
	if !reflect.DeepEqual(v.Reasons, []string{"a", "b", "c", "d"}) {
		t.Errorf("Expected 4 reasons, got %v", v.Reasons)
	}
}

func TestParseCompletion_LevelOverridden(t *testing.T) {
	v, err := ParseCompletion(`{"threat_score": "140", "threat_level": "LOW", "threat_vector": "terror", "one_liner_threat": " Attack\r\nfeared ", "reasons": ["  ", "x"]}`)
	if err != nil {
		t.Fatal(err)
	}
	if v.ThreatScore != 100 || v.ThreatLevel != article.ThreatCritical {
		t.Errorf("Expected clamped 100/CRITICAL, got %v/%s", v.ThreatScore, v.ThreatLevel)
	}
	if v.ThreatVector != article.VectorTerror {
		t.Errorf("Expected TERROR, got %s", v.ThreatVector)
	}
	if v.OneLinerThreat != "Attack\nfeared" {
		t.Errorf("Unexpected one-liner %q", v.OneLinerThreat)
	}
	if !reflect.DeepEqual(v.Reasons, []string{"x"}) {
		t.Errorf("Expected blank reasons dropped, got %v", v.Reasons)
	}
}

func TestParseCompletion_NoJSON(t *testing.T) {
	for _, text := range []string{"", "no json here", "{broken", `[1,2,3]`} {
		if _, err := ParseCompletion(text); !errors.Is(err, ErrNoJSON) {
			t.Errorf("ParseCompletion(%q): expected ErrNoJSON, got %v", text, err)
		}
	}
}

func TestBuildPrompt_FitsBudget(t *testing.T) {
	a := &article.Article{Title: "T", URL: "https://a.pk/1", ContentText: strings.Repeat("word ", 3000)}
	model := &fakeModel{}

	prompt := BuildPrompt(context.Background(), a, model, 800)

	tokens, _ := model.CountTokens(context.Background(), prompt)
	if tokens > 800 {
		t.Errorf("Expected prompt within budget, got %d tokens", tokens)
	}
	if !strings.HasPrefix(prompt, "You are an OSINT threat analyst for Pakistan.\n") {
		t.Error("Expected fixed header")
	}
	if !strings.HasSuffix(prompt, "\n\nNow output the JSON object.") {
		t.Error("Expected fixed footer")
	}
	if strings.Contains(prompt, "[TRUNCATED]") {
		t.Error("Expected shrinking to fit without hard truncation")
	}
}

func TestBuildPrompt_HardTruncation(t *testing.T) {
	a := &article.Article{Title: "T", Summary: "line one\r\nline two\x00 " + strings.Repeat("x", 5000)}
	model := &fakeModel{perToken: 1}

	prompt := BuildPrompt(context.Background(), a, model, 10)

	if !strings.Contains(prompt, " ...[TRUNCATED]\n\nNow output the JSON object.") {
		t.Error("Expected truncation marker")
	}
	if strings.Contains(prompt, "\r") || strings.Contains(prompt, "\x00") {
		t.Error("Expected sanitized text")
	}
	body := prompt[strings.Index(prompt, "Text:\n")+len("Text:\n") : strings.Index(prompt, " ...[TRUNCATED]")]
	if utf8.RuneCountInString(body) > excerptFloor {
		t.Errorf("Expected excerpt at most %d chars, got %d", excerptFloor, utf8.RuneCountInString(body))
	}
}

func TestCountTokens_Fallback(t *testing.T) {
	model := &fakeModel{countErr: errors.New("no tokenizer")}
	if got := countTokens(context.Background(), model, "abcdefghi"); got != 3 {
		t.Errorf("Expected fallback estimate 3, got %d", got)
	}
	if got := countTokens(context.Background(), nil, "a"); got != 1 {
		t.Errorf("Expected minimum of 1, got %d", got)
	}
}

func TestScorer_ScoreAll(t *testing.T) {
	model := &fakeModel{completions: []string{
		`{"threat_score": 55, "threat_vector": "military", "one_liner_threat": "Cross-border firing", "reasons": ["r1"]}`,
		`I cannot comply`,
	}}
	scorer, err := NewScorer(model, 0)
	if err != nil {
		t.Fatal(err)
	}

	first := &article.Article{ID: "1", Title: "Firing at LoC"}
	second := &article.Article{ID: "2", Title: "Unclear"}
	third := &article.Article{ID: "3", Title: "No answer"}

	var progress []string
	if err := scorer.ScoreAll(context.Background(), []*article.Article{first, second, third}, func(s string) {
		progress = append(progress, s)
	}, nil); err != nil {
		t.Fatal(err)
	}

	if *first.ThreatScore != 55 || first.ThreatLevel != article.ThreatHigh || first.ThreatVector != article.VectorMilitary {
		t.Errorf("Unexpected first verdict %v/%s/%s", *first.ThreatScore, first.ThreatLevel, first.ThreatVector)
	}
	if second.ExtractionNotes[0] != "LLM_PARSE_ERROR: could not extract JSON" {
		t.Errorf("Expected parse error note, got %v", second.ExtractionNotes)
	}
	if *second.ThreatScore != 0 || second.ThreatLevel != article.ThreatLow || second.ThreatVector != article.VectorOther || second.Reasons == nil {
		t.Error("Expected defaults on parse failure")
	}
	if len(third.ExtractionNotes) != 1 {
		t.Errorf("Expected empty completion to be a parse failure, got %v", third.ExtractionNotes)
	}
	if progress[len(progress)-1] != "LLM scoring 3/3" {
		t.Errorf("Unexpected progress %v", progress)
	}
}

func TestScorer_ScoreAllStops(t *testing.T) {
	model := &fakeModel{completions: []string{`{"threat_score": 10}`, `{"threat_score": 20}`}}
	scorer, _ := NewScorer(model, 0)

	first := &article.Article{ID: "1"}
	second := &article.Article{ID: "2"}
	calls := 0
	err := scorer.ScoreAll(context.Background(), []*article.Article{first, second}, nil, func() bool {
		calls++
		return calls > 1
	})
	if err != nil {
		t.Fatal(err)
	}
	if first.ThreatScore == nil || second.ThreatScore != nil {
		t.Error("Expected scoring to stop after the first article")
	}
}

func TestScorer_Failures(t *testing.T) {
	if _, err := NewScorer(nil, 0); !errors.Is(err, ErrModelUnavailable) {
		t.Errorf("Expected ErrModelUnavailable, got %v", err)
	}

	failing := &fakeModel{completeErr: errors.New("connection reset")}
	scorer, _ := NewScorer(failing, 0)
	a := &article.Article{ID: "x", ThreatScore: article.Float(30)}
	scorer.Score(context.Background(), a)
	if a.ExtractionNotes[0] != "LLM_ERROR: connection reset" {
		t.Errorf("Unexpected note %v", a.ExtractionNotes)
	}
	if *a.ThreatScore != 30 || a.ThreatLevel != article.ThreatMed {
		t.Error("Expected existing score kept and level derived from it")
	}

	broken := &fakeModel{loadErr: errors.New("model file missing")}
	scorer, _ = NewScorer(broken, 0)
	b := &article.Article{ID: "y"}
	if err := scorer.ScoreAll(context.Background(), []*article.Article{b}, nil, nil); err == nil {
		t.Error("Expected load failure to be returned")
	}
	if len(b.ExtractionNotes) != 1 || !strings.HasPrefix(b.ExtractionNotes[0], "LLM_ERROR: model load failed") {
		t.Errorf("Expected load failure note, got %v", b.ExtractionNotes)
	}
}

func TestLlamaCpp(t *testing.T) {
	var completion completionRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/health":
			w.Write([]byte(`{"status":"ok"}`))
		case "/tokenize":
			w.Write([]byte(`{"tokens":[1,2,3,4]}`))
		case "/completion":
			json.NewDecoder(r.Body).Decode(&completion)
			w.Write([]byte(`{"content":"{\"threat_score\": 10}"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	model := NewLlamaCpp(server.URL+"/", 0)
	ctx := context.Background()

	if err := model.Load(ctx); err != nil {
		t.Fatalf("Expected healthy server, got %v", err)
	}
	if n, err := model.CountTokens(ctx, "hello"); err != nil || n != 4 {
		t.Errorf("Expected 4 tokens, got %d (%v)", n, err)
	}
	out, err := model.Complete(ctx, "prompt", DefaultParams())
	if err != nil || out != `{"threat_score": 10}` {
		t.Errorf("Unexpected completion %q (%v)", out, err)
	}
	if completion.NPredict != 128 || completion.Temperature != 0.2 || completion.TopP != 0.9 || completion.Stop[0] != "\n\n\n" {
		t.Errorf("Unexpected generation params %+v", completion)
	}
}

func TestLlamaCpp_Unhealthy(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	if err := NewLlamaCpp(server.URL, 0).Load(context.Background()); err == nil {
		t.Error("Expected error for unhealthy server")
	}
}

func TestNewModel(t *testing.T) {
	if m, err := NewModel("none", "", "", "", 0); m != nil || err != nil {
		t.Errorf("Expected nil model for none, got %v %v", m, err)
	}
	if m, _ := NewModel("llamacpp", "http://x", "", "", 0); m == nil {
		t.Error("Expected llamacpp model")
	}
	if _, err := NewModel("openai", "", "", "", 0); err == nil {
		t.Error("Expected unknown backend error")
	}
}
