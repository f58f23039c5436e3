package speech

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeVoiceAlias(t *testing.T) {
	cases := []struct {
		alias  string
		expect string
	}{
		{alias: "poet-narrator", expect: DefaultVoice},
		{alias: " POET-NARRATOR ", expect: DefaultVoice},
		{alias: "en_female_amy_jupiter_bigtts", expect: "en_female_amy_jupiter_bigtts"},
		{alias: "", expect: ""},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.expect, NormalizeVoiceAlias(tc.alias), "alias %q", tc.alias)
	}
}

func TestResolveResourceCandidates(t *testing.T) {
	tests := []struct {
		name  string
		voice string
		want  []string
	}{
		{name: "default voice", voice: "", want: []string{defaultResource, seedResource}},
		{name: "mega clone voice", voice: "S_clone_speaker", want: []string{megaResource}},
		{name: "bigtts voice", voice: "en_male_glen_emo_v2_mars_bigtts", want: []string{seedResource, defaultResource}},
		{name: "legacy 1.0 voice", voice: "en_male_adam", want: []string{defaultResource, seedResource}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, resolveResourceCandidates(tt.voice))
		})
	}
}

func TestResolveSpeakerCandidates(t *testing.T) {
	tests := []struct {
		name     string
		request  string
		fallback string
		want     []string
	}{
		{
			name:     "request and fallback",
			request:  "custom-voice",
			fallback: "en_female_amy_jupiter_bigtts",
			want:     []string{"custom-voice", "en_female_amy_jupiter_bigtts"},
		},
		{
			name:     "request empty",
			fallback: "en_female_amy_jupiter_bigtts",
			want:     []string{"en_female_amy_jupiter_bigtts"},
		},
		{
			name:     "duplicates ignored",
			request:  "EN_voice",
			fallback: "en_voice",
			want:     []string{"EN_voice"},
		},
		{
			name:     "persona alias",
			request:  "poet-narrator",
			fallback: "en_default",
			want:     []string{DefaultVoice, "en_female_amy_jupiter_bigtts"},
		},
		{
			name: "nothing configured",
			want: []string{DefaultVoice},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, resolveSpeakerCandidates(tt.request, tt.fallback))
		})
	}
}
