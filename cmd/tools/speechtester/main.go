package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/zhouzirui/poem-tavern/backend/internal/config"
	"github.com/zhouzirui/poem-tavern/backend/internal/logging"
	"github.com/zhouzirui/poem-tavern/backend/internal/model/persona"
	speechmodel "github.com/zhouzirui/poem-tavern/backend/internal/model/speech"
	"github.com/zhouzirui/poem-tavern/backend/internal/service/speech"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("[WARN] 无法加载 .env，改用系统环境变量: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("配置加载失败: %v", err)
	}

	logger, flush, err := logging.Install(cfg.Environment)
	if err != nil {
		log.Fatalf("日志初始化失败: %v", err)
	}
	defer flush()

	if !cfg.Speech.Enabled {
		logger.Fatal("语音服务未启用，请先在环境变量中配置 SPEECH_APP_ID 与 SPEECH_ACCESS_TOKEN")
	}

	text := flag.String("text", "", "TTS 输入文本，默认朗读诗人的开场白")
	outputPath := flag.String("out", "", "输出音频文件路径 (默认根据格式自动生成)")
	format := flag.String("format", "mp3", "输出音频格式: mp3, ogg_opus, pcm")
	language := flag.String("lang", "", "语言代码，默认使用配置中的语言")
	voice := flag.String("voice", "", "声音 ID 或别名，默认使用诗人的音色")
	session := flag.String("session", "", "自定义 sessionID，留空则自动生成")
	timeout := flag.Duration("timeout", 45*time.Second, "请求超时时间")

	flag.Parse()

	poet := persona.Default()
	if strings.TrimSpace(*text) == "" {
		*text = poet.OpeningLine
	}
	if strings.TrimSpace(*voice) == "" {
		*voice = poet.VoiceID
	}

	sessionID := *session
	if sessionID == "" {
		sessionID = fmt.Sprintf("manual-%d", time.Now().UnixNano())
	}

	if *language == "" {
		*language = cfg.Speech.TTSLanguage
	}

	svc := speech.NewService(cfg.Speech.Model(), logger)
	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	logger.Info("开始进行 TTS 测试",
		zap.String("session", sessionID),
		zap.String("voice", speech.NormalizeVoiceAlias(*voice)),
		zap.String("format", *format),
		zap.String("language", *language))

	resp, err := svc.SynthesizeSpeech(ctx, &speechmodel.TTSRequest{
		SessionID: sessionID,
		Text:      *text,
		Voice:     *voice,
		Format:    *format,
		Language:  *language,
	})
	if err != nil {
		logger.Fatal("TTS 调用失败", zap.Error(err))
	}

	out := *outputPath
	if out == "" {
		ext := resp.Format
		if ext == "" {
			ext = "mp3"
		}
		out = fmt.Sprintf("tts_output_%s.%s", sessionID, ext)
	}

	if err := os.WriteFile(out, resp.AudioData, 0o644); err != nil {
		logger.Fatal("写入音频文件失败", zap.Error(err))
	}

	logger.Info("TTS 测试完成",
		zap.String("requestId", resp.RequestID),
		zap.Int64("durationMs", resp.Duration),
		zap.Int("bytes", len(resp.AudioData)),
		zap.String("file", out))
}
