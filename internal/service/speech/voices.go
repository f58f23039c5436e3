package speech

import "strings"

// DefaultVoice 请求和配置都未指定音色时使用
const DefaultVoice = "en_male_glen_emo_v2_mars_bigtts"

const (
	defaultResource = "volc.service_type.10029"
	megaResource    = "volc.megatts.default"
	seedResource    = "seed-tts-2.0"
)

// 角色音色别名 -> 火山引擎音色
var voiceAliases = map[string]string{
	"poet-narrator": DefaultVoice,
	"en_default":    "en_female_amy_jupiter_bigtts",
	"en_narrator":   "en_male_dryw_mars_bigtts",
}

// NormalizeVoiceAlias 将人设中的音色别名映射为服务商音色ID，未知值去空白后原样返回
func NormalizeVoiceAlias(voice string) string {
	voice = strings.TrimSpace(voice)
	if mapped, ok := voiceAliases[strings.ToLower(voice)]; ok {
		return mapped
	}
	return voice
}

func resolveResourceCandidates(voice string) []string {
	voice = strings.TrimSpace(voice)
	if voice == "" {
		return []string{defaultResource, seedResource}
	}

	if strings.HasPrefix(voice, "S_") {
		return []string{megaResource}
	}

	normalized := strings.ToLower(voice)
	for _, hint := range []string{"bigtts", "seed", "megatts", "uranus", "venus", "jupiter", "saturn", "mars"} {
		if strings.Contains(normalized, hint) {
			return []string{seedResource, defaultResource}
		}
	}

	return []string{defaultResource, seedResource}
}

// resolveSpeakerCandidates 按请求音色 -> 配置音色 -> 默认音色的顺序去重
func resolveSpeakerCandidates(requested, fallback string) []string {
	var candidates []string

	add := func(s string) {
		s = NormalizeVoiceAlias(s)
		if s == "" {
			return
		}
		for _, existing := range candidates {
			if strings.EqualFold(existing, s) {
				return
			}
		}
		candidates = append(candidates, s)
	}

	add(requested)
	add(fallback)
	if len(candidates) == 0 {
		add(DefaultVoice)
	}

	return candidates
}
