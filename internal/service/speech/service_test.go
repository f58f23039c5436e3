package speech

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/poem-tavern/backend/internal/model/speech"
)

type fakeSynthesizer struct {
	got      *speech.TTSRequest
	deadline time.Time
	err      error
}

func (f *fakeSynthesizer) Synthesize(ctx context.Context, req *speech.TTSRequest) (*speech.TTSResponse, error) {
	f.got = req
	f.deadline, _ = ctx.Deadline()
	if f.err != nil {
		return nil, f.err
	}
	return &speech.TTSResponse{SessionID: req.SessionID, AudioData: []byte("audio"), Format: "mp3"}, nil
}

func TestServiceSynthesizeToBuffer(t *testing.T) {
	fake := &fakeSynthesizer{}
	svc := NewServiceWithSynthesizer(&speech.SpeechConfig{AppID: "a", AccessToken: "b", Timeout: 5}, fake, nil)

	start := time.Now()
	resp, err := svc.SynthesizeToBuffer(context.Background(), "s1", "a poem", "poet-narrator", "en-US")
	require.NoError(t, err)

	assert.Equal(t, "audio", string(resp.AudioData))
	assert.Equal(t, "poet-narrator", fake.got.Voice)
	assert.WithinDuration(t, start.Add(5*time.Second), fake.deadline, time.Second)
	assert.True(t, svc.Configured())
}

func TestServiceRejectsEmptyText(t *testing.T) {
	fake := &fakeSynthesizer{}
	svc := NewServiceWithSynthesizer(&speech.SpeechConfig{}, fake, nil)

	_, err := svc.SynthesizeSpeech(context.Background(), &speech.TTSRequest{Text: "  "})
	assert.Error(t, err)
	assert.Nil(t, fake.got)
	assert.False(t, svc.Configured())
}

func TestServiceWrapsSynthesizerError(t *testing.T) {
	boom := errors.New("boom")
	svc := NewServiceWithSynthesizer(&speech.SpeechConfig{}, &fakeSynthesizer{err: boom}, nil)

	_, err := svc.SynthesizeSpeech(context.Background(), &speech.TTSRequest{Text: "x"})
	assert.ErrorIs(t, err, boom)
}
