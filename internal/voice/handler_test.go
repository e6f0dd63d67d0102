package voice

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeQuestions struct {
	list []string
	err  error
}

func (f *fakeQuestions) Get(ctx context.Context) ([]string, error) {
	return f.list, f.err
}

type fakeAnswers struct {
	byCall map[string]map[int]string
	err    error
}

func (f *fakeAnswers) UpsertAnswer(ctx context.Context, callSid string, index int, answer string) error {
	if f.err != nil {
		return f.err
	}
	if f.byCall == nil {
		f.byCall = make(map[string]map[int]string)
	}
	if f.byCall[callSid] == nil {
		f.byCall[callSid] = make(map[int]string)
	}
	f.byCall[callSid][index] = answer
	return nil
}

func newTestRouter(h *Handler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST(AskPath, h.Ask)
	return router
}

func postAsk(t *testing.T, router *gin.Engine, index string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	target := AskPath
	if index != "" {
		target += "?questionIndex=" + index
	}
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestAskFullProgression(t *testing.T) {
	qs := &fakeQuestions{list: []string{"How do you feel today?", "Did you take your medication?", "Do you need a follow-up?"}}
	ans := &fakeAnswers{}
	router := newTestRouter(NewHandler(qs, ans, nil))

	// Step 0: no answer yet, first question spoken, next callback armed at 1.
	w := postAsk(t, router, "0", url.Values{"CallSid": {"CA1"}})
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "<Gather")
	assert.Contains(t, body, "How do you feel today?")
	assert.Contains(t, body, AskPath+"?questionIndex=1")
	assert.NotContains(t, body, "<Hangup")

	// Steps 1..2: each answer lands one index behind the question being asked.
	w = postAsk(t, router, "1", url.Values{"CallSid": {"CA1"}, "SpeechResult": {"A"}})
	assert.Contains(t, w.Body.String(), "Did you take your medication?")

	w = postAsk(t, router, "2", url.Values{"CallSid": {"CA1"}, "SpeechResult": {"B"}})
	assert.Contains(t, w.Body.String(), "Do you need a follow-up?")

	// Step 3: past the end, last answer stored, call ends with a hangup.
	w = postAsk(t, router, "3", url.Values{"CallSid": {"CA1"}, "Digits": {"C"}})
	body = w.Body.String()
	assert.Contains(t, body, "<Hangup")
	assert.NotContains(t, body, "<Gather")

	assert.Equal(t, map[int]string{0: "A", 1: "B", 2: "C"}, ans.byCall["CA1"])
}

func TestAskRepromptTargetsSameIndex(t *testing.T) {
	qs := &fakeQuestions{list: []string{"q0", "q1"}}
	router := newTestRouter(NewHandler(qs, &fakeAnswers{}, nil))

	w := postAsk(t, router, "1", url.Values{"CallSid": {"CA2"}, "Digits": {"5"}})
	body := w.Body.String()

	// The no-input Redirect replays question 1; only the Gather advances to 2.
	assert.Contains(t, body, AskPath+"?questionIndex=1</Redirect>")
	assert.Contains(t, body, AskPath+"?questionIndex=2")
}

func TestAskNoAnswerAtIndexZeroIsNotRecorded(t *testing.T) {
	qs := &fakeQuestions{list: []string{"q0"}}
	ans := &fakeAnswers{}
	router := newTestRouter(NewHandler(qs, ans, nil))

	// An answer delivered with index 0 has no preceding question to belong to.
	postAsk(t, router, "0", url.Values{"CallSid": {"CA3"}, "Digits": {"9"}})
	assert.Empty(t, ans.byCall)
}

func TestAskEmptyQuestionSetHangsUpImmediately(t *testing.T) {
	router := newTestRouter(NewHandler(&fakeQuestions{list: []string{}}, &fakeAnswers{}, nil))

	w := postAsk(t, router, "0", url.Values{"CallSid": {"CA4"}})
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "<Hangup")
	assert.NotContains(t, body, "<Gather")
}

func TestAskSpeechWinsOverDigits(t *testing.T) {
	qs := &fakeQuestions{list: []string{"q0", "q1"}}
	ans := &fakeAnswers{}
	router := newTestRouter(NewHandler(qs, ans, nil))

	postAsk(t, router, "1", url.Values{"CallSid": {"CA5"}, "SpeechResult": {"yes"}, "Digits": {"1"}})
	assert.Equal(t, "yes", ans.byCall["CA5"][0])
}

func TestAskDuplicateDeliveryOverwritesSingleIndex(t *testing.T) {
	qs := &fakeQuestions{list: []string{"q0", "q1", "q2"}}
	ans := &fakeAnswers{}
	router := newTestRouter(NewHandler(qs, ans, nil))

	postAsk(t, router, "1", url.Values{"CallSid": {"CA6"}, "SpeechResult": {"first"}})
	postAsk(t, router, "2", url.Values{"CallSid": {"CA6"}, "SpeechResult": {"mid"}})
	// Provider retry redelivers the index 1 callback with a different answer.
	postAsk(t, router, "1", url.Values{"CallSid": {"CA6"}, "SpeechResult": {"retry"}})

	// Only answer index 0 is replaced; index 1 is untouched.
	assert.Equal(t, map[int]string{0: "retry", 1: "mid"}, ans.byCall["CA6"])
}

func TestAskMissingIndexDefaultsToZero(t *testing.T) {
	qs := &fakeQuestions{list: []string{"the first question"}}
	router := newTestRouter(NewHandler(qs, &fakeAnswers{}, nil))

	w := postAsk(t, router, "", url.Values{"CallSid": {"CA7"}})
	assert.Contains(t, w.Body.String(), "the first question")
}

func TestAskQuestionLoadFailureApologizes(t *testing.T) {
	qs := &fakeQuestions{err: errors.New("db down")}
	router := newTestRouter(NewHandler(qs, &fakeAnswers{}, nil))

	w := postAsk(t, router, "0", url.Values{"CallSid": {"CA8"}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/xml")
	body := w.Body.String()
	assert.Contains(t, body, "An application error has occurred")
	assert.Contains(t, body, "<Hangup")
	assert.NotContains(t, body, "<Gather")
}

func TestAskAnswerStoreFailureApologizes(t *testing.T) {
	qs := &fakeQuestions{list: []string{"q0", "q1"}}
	ans := &fakeAnswers{err: errors.New("insert failed")}
	router := newTestRouter(NewHandler(qs, ans, nil))

	w := postAsk(t, router, "1", url.Values{"CallSid": {"CA9"}, "Digits": {"7"}})
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "An application error has occurred")
	assert.Contains(t, body, "<Hangup")
}
