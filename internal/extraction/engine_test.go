package extraction

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/thebtf/designpartner/internal/curriculum"
	"github.com/thebtf/designpartner/internal/provider"
	"github.com/thebtf/designpartner/pkg/models"
)

type EngineSuite struct {
	suite.Suite
	response string
	err      error
	lastReq  *provider.Request
	engine   *Engine
}

func (s *EngineSuite) SetupTest() {
	s.response = ""
	s.err = nil
	s.lastReq = nil
	s.engine = New(provider.Func(func(_ context.Context, req *provider.Request) (string, error) {
		s.lastReq = req
		return s.response, s.err
	}), WithWindowTokens(50), WithMaxTokens(300), WithTemperature(0.2))
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineSuite))
}

func (s *EngineSuite) request(utterance string) Request {
	return Request{
		Utterance:    utterance,
		Document:     models.NewDocument(),
		Coverage:     models.NewCoverageSet(),
		Topics:       TopicsOf(curriculum.Default()),
		CurrentTopic: "domain",
	}
}

func (s *EngineSuite) TestExtractMarksDiscoveredAndFillsQuestion() {
	s.response = `{"updates":[{"topic":"domain","value":"climbing app","confidence":0.9},{"topic":"pricing","value":"freemium","confidence":0.6}]}`

	res, err := s.engine.Extract(context.Background(), s.request("it's a freemium climbing app"))
	s.Require().NoError(err)
	s.False(res.ParseFailure)
	s.Require().Len(res.Updates, 2)

	s.False(res.Updates[0].Discovered)
	s.Equal("In a sentence, what kind of product are you building?", res.Updates[0].Question)
	s.True(res.Updates[1].Discovered)

	s.Require().NotNil(s.lastReq)
	s.True(s.lastReq.JSON)
	s.Equal(300, s.lastReq.MaxTokens)
	s.InDelta(0.2, s.lastReq.Temperature, 0.0001)
	s.Equal(SystemPrompt, s.lastReq.System)
	s.Contains(s.lastReq.Instruction, "it's a freemium climbing app")
	s.Contains(s.lastReq.Instruction, "The user was just asked about: domain")
}

func (s *EngineSuite) TestExtractParseFailureIsSoft() {
	s.response = "I'm not sure what you mean."

	res, err := s.engine.Extract(context.Background(), s.request("hmm"))
	s.Require().NoError(err)
	s.True(res.ParseFailure)
	s.Empty(res.Updates)
	s.Equal(s.response, res.Raw)
}

func (s *EngineSuite) TestExtractZeroUpdates() {
	s.response = `{"updates":[],"addressed":[]}`

	res, err := s.engine.Extract(context.Background(), s.request("what's the weather like?"))
	s.Require().NoError(err)
	s.False(res.ParseFailure)
	s.Empty(res.Updates)
}

func (s *EngineSuite) TestExtractProviderErrorPropagates() {
	perr := &provider.Error{Kind: provider.Transient, Message: "overloaded"}
	s.err = perr

	_, err := s.engine.Extract(context.Background(), s.request("hello"))
	s.ErrorIs(err, perr)
}

func (s *EngineSuite) TestExtractBlankUtteranceSkipsProvider() {
	res, err := s.engine.Extract(context.Background(), s.request("   "))
	s.Require().NoError(err)
	s.Empty(res.Updates)
	s.Nil(s.lastReq)
}

func (s *EngineSuite) TestExtractIncludesDocumentAndWindow() {
	s.response = `{"updates":[]}`
	req := s.request("more detail")
	req.Document.Topics["domain"] = &models.TopicRecord{ID: "domain", Value: models.Value{Text: "climbing app"}, Confidence: 0.9}
	req.Document.Topics["pricing"] = &models.TopicRecord{ID: "pricing", Value: models.Value{Text: "freemium"}}
	req.Transcript = models.Transcript{
		{Seq: 1, Role: models.RoleAssistant, Text: strings.Repeat("old words ", 100)},
		{Seq: 2, Role: models.RoleUser, Text: "a climbing app"},
		{Seq: 3, Role: models.RoleAssistant, Text: "What problem does it solve?"},
	}

	_, err := s.engine.Extract(context.Background(), req)
	s.Require().NoError(err)

	s.Contains(s.lastReq.Document, `"climbing app"`)
	s.Contains(s.lastReq.Instruction, "Other topics already recorded: pricing")
	s.Require().Len(s.lastReq.Transcript, 2)
	s.Equal(provider.RoleUser, s.lastReq.Transcript[0].Role)
	s.Equal(provider.RoleAssistant, s.lastReq.Transcript[1].Role)
}

func TestWindow(t *testing.T) {
	tr := models.Transcript{
		{Seq: 1, Role: models.RoleAssistant, Text: "first question"},
		{Seq: 2, Role: models.RoleUser, Text: "first answer"},
		{Seq: 3, Role: models.RoleAssistant, Text: "second question"},
	}

	assert.Nil(t, Window(nil, 10))
	assert.Len(t, Window(tr, 10000), 3)

	one := Window(tr, 1)
	require.Len(t, one, 1, "newest turn is always kept")
	assert.Equal(t, "second question", one[0].Content)
}

func TestCountTokens(t *testing.T) {
	assert.Zero(t, CountTokens(""))
	assert.Greater(t, CountTokens("a climbing app for tracking training volume"), 3)
}

func TestBuildDocumentJSON(t *testing.T) {
	doc := models.NewDocument()
	doc.Topics["mvp_features"] = &models.TopicRecord{ID: "mvp_features", Value: models.Value{Items: []string{"log"}}, Confidence: 1}
	assert.Equal(t, `{"mvp_features":{"confidence":1,"items":["log"]}}`, BuildDocumentJSON(doc))
	assert.Equal(t, `{}`, BuildDocumentJSON(models.NewDocument()))
}

func TestExtractNilDocument(t *testing.T) {
	e := New(provider.Func(func(context.Context, *provider.Request) (string, error) {
		return "", errors.New("boom")
	}))
	_, err := e.Extract(context.Background(), Request{Utterance: "x"})
	assert.EqualError(t, err, "boom")
}
