package extractor

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"care-ats/internal/types"
)

type fakeClient struct {
	audio   bool
	reply   string
	err     error
	prompts []string
	inputs  []Input
}

func (f *fakeClient) AcceptsAudio() bool { return f.audio }

func (f *fakeClient) Complete(_ context.Context, prompt string, in Input) (string, error) {
	f.prompts = append(f.prompts, prompt)
	f.inputs = append(f.inputs, in)
	return f.reply, f.err
}

const screeningReply = `{"candidate_name":"Tom Reid","call_type":"recruitment_screening","summary":"Keen, can start in two weeks.",
"energy_score":7,"quality_rating":4,"earliest_start_date":"two weeks","roles":["home carer"]}`

func TestExtract_ResolvesRelativeStartDate(t *testing.T) {
	fc := &fakeClient{reply: screeningReply}
	e, err := New(fc, nil)
	require.NoError(t, err)

	a, err := e.Extract(context.Background(), Input{
		Today:      refDate,
		Phone:      "+447700900123",
		Transcript: "I could start in two weeks.",
	})
	require.NoError(t, err)

	assert.Equal(t, "2025-01-15", types.Str(a.EarliestStartDate))
	require.Len(t, fc.prompts, 1)
	assert.Contains(t, fc.prompts[0], "TODAY'S DATE: 2025-01-01 (Wednesday)")
	assert.Contains(t, fc.prompts[0], "CALLER PHONE: +447700900123")
	assert.Contains(t, fc.prompts[0], "I could start in two weeks.")
}

func TestExtract_AudioProviderGetsAudioPrompt(t *testing.T) {
	reply := strings.Replace(screeningReply, `"roles"`, `"transcript":"hello there","roles"`, 1)
	fc := &fakeClient{audio: true, reply: reply}
	e, err := New(fc, nil)
	require.NoError(t, err)
	assert.True(t, e.AcceptsAudio())

	a, err := e.Extract(context.Background(), Input{Today: refDate, Audio: []byte("ID3"), AudioMIME: "audio/mpeg"})
	require.NoError(t, err)

	assert.Equal(t, "hello there", types.Str(a.Transcript))
	assert.Contains(t, fc.prompts[0], "The call audio is attached")
	assert.Contains(t, fc.prompts[0], `"transcript"`)
	assert.Equal(t, []byte("ID3"), fc.inputs[0].Audio)
}

func TestExtract_Failures(t *testing.T) {
	e, err := New(&fakeClient{err: errors.New("boom")}, nil)
	require.NoError(t, err)
	_, err = e.Extract(context.Background(), Input{Today: refDate, Transcript: "x"})
	assert.ErrorContains(t, err, "boom")

	e, err = New(&fakeClient{reply: `{"call_type":"other"}`}, nil)
	require.NoError(t, err)
	_, err = e.Extract(context.Background(), Input{Today: refDate, Transcript: "x"})
	var verr *ValidationError
	assert.True(t, errors.As(err, &verr))

	_, err = e.Extract(context.Background(), Input{Today: refDate})
	assert.Error(t, err, "nothing to analyse")
}

func TestMockClient_ProducesValidAnalysis(t *testing.T) {
	e, err := New(MockClient{}, nil)
	require.NoError(t, err)

	a, err := e.Extract(context.Background(), Input{Today: refDate, Transcript: "hello"})
	require.NoError(t, err)
	assert.Equal(t, types.CallRecruitmentScreening, a.CallType)
	assert.Equal(t, "2025-01-15", types.Str(a.EarliestStartDate))

	a, err = e.Extract(context.Background(), Input{Today: refDate, Transcript: "sorry, wrong number"})
	require.NoError(t, err)
	assert.Equal(t, types.CallOther, a.CallType)
}
