// Package voice drives the phone questionnaire: one webhook callback per step,
// all flow state carried by the questionIndex query parameter and the persisted
// per-session answers.
package voice

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/twilio/twilio-go/twiml"
	"go.uber.org/zap"
)

const (
	// AskPath is the webhook route the provider posts each step to.
	AskPath = "/twiml/ask"

	// gatherTimeoutSec bounds the wait for caller input; on expiry the same
	// question is asked again instead of advancing.
	gatherTimeoutSec = 10

	noInputMessage = "We didn't receive any input. Let's try that again."
	goodbyeMessage = "Thank you for your responses. Goodbye!"
	apologyMessage = "An application error has occurred. Goodbye."
	contentTypeXML = "text/xml"
)

// fallbackTwiML is emitted if even TwiML rendering fails. The caller is on a
// live line and must always receive a parseable document.
const fallbackTwiML = `<?xml version="1.0" encoding="UTF-8"?><Response><Say>` + apologyMessage + `</Say><Hangup/></Response>`

// QuestionSource loads the ordered questionnaire.
type QuestionSource interface {
	Get(ctx context.Context) ([]string, error)
}

// AnswerStore records one answer per (session, question index), last write wins.
type AnswerStore interface {
	UpsertAnswer(ctx context.Context, callSid string, index int, answer string) error
}

// Handler handles the questionnaire webhook.
type Handler struct {
	questions QuestionSource
	answers   AnswerStore
	logger    *zap.Logger
}

// NewHandler creates a voice webhook handler.
func NewHandler(questions QuestionSource, answers AnswerStore, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{questions: questions, answers: answers, logger: logger}
}

// Ask handles POST /twiml/ask?questionIndex=i.
//
// The form carries CallSid and, after the first step, the caller's answer as
// SpeechResult or Digits. That answer belongs to the question asked one step
// ago, so it is stored under index i-1 before question i is spoken. When i is
// past the end of the set the call is thanked and hung up.
func (h *Handler) Ask(c *gin.Context) {
	ctx := c.Request.Context()

	callSid := c.PostForm("CallSid")
	answer := c.PostForm("SpeechResult")
	if answer == "" {
		answer = c.PostForm("Digits")
	}
	index, err := strconv.Atoi(c.DefaultQuery("questionIndex", "0"))
	if err != nil || index < 0 {
		index = 0
	}

	if answer != "" && index > 0 {
		if err := h.answers.UpsertAnswer(ctx, callSid, index-1, answer); err != nil {
			h.logger.Error("store answer", zap.Error(err), zap.String("call_sid", callSid), zap.Int("index", index-1))
			h.apologize(c)
			return
		}
	}

	list, err := h.questions.Get(ctx)
	if err != nil {
		h.logger.Error("load questions", zap.Error(err), zap.String("call_sid", callSid))
		h.apologize(c)
		return
	}

	var doc string
	if index < len(list) {
		doc, err = askDocument(list[index], index)
	} else {
		doc, err = goodbyeDocument()
	}
	if err != nil {
		h.logger.Error("render twiml", zap.Error(err), zap.String("call_sid", callSid))
		h.apologize(c)
		return
	}

	c.Data(http.StatusOK, contentTypeXML, []byte(doc))
}

// apologize ends the call gracefully after an internal failure.
func (h *Handler) apologize(c *gin.Context) {
	doc, err := twiml.Voice([]twiml.Element{
		&twiml.VoiceSay{Message: apologyMessage},
		&twiml.VoiceHangup{},
	})
	if err != nil {
		doc = fallbackTwiML
	}
	c.Data(http.StatusOK, contentTypeXML, []byte(doc))
}

// askDocument speaks question i inside a Gather armed for index i+1. If no
// input arrives before the timeout, the trailing Redirect replays index i.
func askDocument(question string, index int) (string, error) {
	gather := &twiml.VoiceGather{
		Input:     "speech dtmf",
		NumDigits: "1",
		Action:    actionURL(index + 1),
		Method:    "POST",
		Timeout:   strconv.Itoa(gatherTimeoutSec),
		InnerElements: []twiml.Element{
			&twiml.VoiceSay{Message: question},
		},
	}
	return twiml.Voice([]twiml.Element{
		gather,
		&twiml.VoiceSay{Message: noInputMessage},
		&twiml.VoiceRedirect{Url: actionURL(index), Method: "POST"},
	})
}

func goodbyeDocument() (string, error) {
	return twiml.Voice([]twiml.Element{
		&twiml.VoiceSay{Message: goodbyeMessage},
		&twiml.VoiceHangup{},
	})
}

func actionURL(index int) string {
	return fmt.Sprintf("%s?questionIndex=%d", AskPath, index)
}
