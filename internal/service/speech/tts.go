package speech

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/zhouzirui/poem-tavern/backend/internal/model/speech"
)

// DefaultTTSURL 火山引擎单向流式TTS接口地址
const DefaultTTSURL = "wss://openspeech.bytedance.com/api/v3/tts/unidirectional/stream"

var errResourceMismatch = errors.New("resource ID is mismatched with speaker related resource")

// TTSClient 火山引擎TTS WebSocket客户端
type TTSClient struct {
	config *speech.SpeechConfig
	url    string
	dialer *websocket.Dialer
	logger *zap.Logger
}

type ttsServerMessage struct {
	ReqID    string `json:"reqid"`
	Code     int    `json:"code"`
	Message  string `json:"message"`
	Sequence int    `json:"sequence"`
	Data     string `json:"data"`
	Addition struct {
		Duration string `json:"duration,omitempty"`
	} `json:"addition,omitempty"`
}

type ttsRequestPayload struct {
	User struct {
		UID string `json:"uid"`
	} `json:"user"`
	ReqParams struct {
		Speaker     string         `json:"speaker"`
		Text        string         `json:"text"`
		AudioParams ttsAudioParams `json:"audio_params"`
		Additions   string         `json:"additions,omitempty"`
		Language    string         `json:"language,omitempty"`
	} `json:"req_params"`
}

type ttsAudioParams struct {
	Format      string  `json:"format"`
	SampleRate  int     `json:"sample_rate"`
	SpeedRatio  float32 `json:"speed_ratio,omitempty"`
	VolumeRatio float32 `json:"volume_ratio,omitempty"`
}

// NewTTSClient 创建火山引擎TTS客户端
func NewTTSClient(config *speech.SpeechConfig, url string, logger *zap.Logger) *TTSClient {
	if url == "" {
		url = DefaultTTSURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TTSClient{
		config: config,
		url:    url,
		dialer: &websocket.Dialer{HandshakeTimeout: 30 * time.Second},
		logger: logger,
	}
}

// Synthesize 依次尝试音色与资源候选直到成功，
// 只有资源与音色不匹配时才尝试下一个候选
func (c *TTSClient) Synthesize(ctx context.Context, req *speech.TTSRequest) (*speech.TTSResponse, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, fmt.Errorf("TTS text is empty")
	}

	appKey, accessKey, err := resolveCredentials(c.config)
	if err != nil {
		return nil, err
	}

	encoding := strings.TrimSpace(req.Format)
	if encoding == "" || encoding == "wav" {
		encoding = "mp3"
	}

	speakers := resolveSpeakerCandidates(req.Voice, c.config.TTSVoice)
	var lastMismatch error

	for _, speaker := range speakers {
		for _, resourceID := range resolveResourceCandidates(speaker) {
			resp, attemptErr := c.synthesizeWith(ctx, req, appKey, accessKey, speaker, encoding, resourceID)
			if attemptErr == nil {
				return resp, nil
			}
			if !errors.Is(attemptErr, errResourceMismatch) {
				return nil, attemptErr
			}
			c.logger.Info("tts resource mismatch, trying next candidate",
				zap.String("speaker", speaker),
				zap.String("resource", resourceID))
			lastMismatch = attemptErr
		}
	}

	if lastMismatch != nil {
		return nil, lastMismatch
	}
	return nil, fmt.Errorf("TTS synthesis failed: no compatible resource for voices %v", speakers)
}

func (c *TTSClient) synthesizeWith(ctx context.Context, req *speech.TTSRequest, appKey, accessKey, speaker, encoding, resourceID string) (*speech.TTSResponse, error) {
	connectID := uuid.NewString()

	header := http.Header{}
	header.Set("X-Api-App-Key", appKey)
	header.Set("X-Api-Access-Key", accessKey)
	header.Set("X-Api-Resource-Id", resourceID)
	header.Set("X-Api-Connect-Id", connectID)

	conn, resp, err := c.dialer.DialContext(ctx, c.url, header)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to TTS WebSocket: %w", err)
	}
	defer conn.Close()

	if resp != nil {
		if logid := resp.Header.Get("X-Tt-Logid"); logid != "" {
			c.logger.Debug("tts connected", zap.String("logid", logid))
		}
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetReadDeadline(deadline)
	}

	payload, uid := c.buildRequest(req, speaker, encoding)
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal TTS request: %w", err)
	}

	if err := conn.WriteMessage(websocket.BinaryMessage, NewClientRequest(data, NoCompression).Encode()); err != nil {
		return nil, fmt.Errorf("failed to send TTS request: %w", err)
	}

	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		sessionID = uid
	}

	var (
		audio    bytes.Buffer
		reqID    string
		duration int64
	)

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		_, raw, err := conn.ReadMessage()
		if err != nil {
			return nil, fmt.Errorf("failed to read TTS response: %w", err)
		}

		frame, err := DecodeFrame(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("failed to decode TTS message: %w", err)
		}

		body, err := DecompressPayload(frame.Payload, frame.Compression)
		if err != nil {
			return nil, fmt.Errorf("failed to decompress TTS payload: %w", err)
		}

		var serverSequence int
		switch frame.Type {
		case ErrorMessage:
			if strings.Contains(string(body), errResourceMismatch.Error()) {
				return nil, fmt.Errorf("TTS error %d: %w", frame.ErrorCode, errResourceMismatch)
			}
			return nil, fmt.Errorf("TTS error %d: %s", frame.ErrorCode, string(body))

		case AudioOnlyServerResponse:
			audio.Write(body)

		case FullServerResponse:
			if len(body) == 0 {
				break
			}
			var msg ttsServerMessage
			if err := json.Unmarshal(body, &msg); err != nil {
				c.logger.Warn("tts response payload is not json", zap.Error(err))
				break
			}
			if msg.Code != 0 && msg.Code != 3000 {
				return nil, fmt.Errorf("TTS API error %d: %s", msg.Code, msg.Message)
			}
			if msg.ReqID != "" {
				reqID = msg.ReqID
			}
			if msg.Addition.Duration != "" {
				if parsed, err := strconv.ParseInt(msg.Addition.Duration, 10, 64); err == nil {
					duration = parsed
				}
			}
			if msg.Data != "" {
				chunk, err := base64.StdEncoding.DecodeString(msg.Data)
				if err != nil {
					return nil, fmt.Errorf("failed to decode base64 audio chunk: %w", err)
				}
				audio.Write(chunk)
			}
			serverSequence = msg.Sequence

		default:
			c.logger.Debug("unexpected tts message type", zap.Uint8("type", uint8(frame.Type)))
		}

		finished := frame.IsLast() || serverSequence < 0 ||
			(frame.hasEvent() && frame.Event == EventSessionFinished)
		if !finished {
			continue
		}

		if audio.Len() == 0 {
			return nil, fmt.Errorf("TTS audio is empty")
		}
		if reqID == "" {
			reqID = connectID
		}
		return &speech.TTSResponse{
			SessionID: sessionID,
			AudioData: audio.Bytes(),
			Duration:  duration,
			Format:    encoding,
			RequestID: reqID,
			CreatedAt: time.Now(),
		}, nil
	}
}

// buildRequest 构建符合火山引擎API格式的TTS请求
func (c *TTSClient) buildRequest(req *speech.TTSRequest, speaker, encoding string) (*ttsRequestPayload, string) {
	payload := &ttsRequestPayload{}

	uid := strings.TrimSpace(req.SessionID)
	if uid == "" {
		uid = uuid.NewString()
	}
	payload.User.UID = uid

	payload.ReqParams.Speaker = speaker
	payload.ReqParams.Text = req.Text
	payload.ReqParams.AudioParams.Format = encoding
	payload.ReqParams.AudioParams.SampleRate = 24000

	speed := req.Speed
	if speed <= 0 {
		speed = c.config.TTSSpeed
	}
	if speed > 0 && speed != 1.0 {
		payload.ReqParams.AudioParams.SpeedRatio = speed
	}

	volume := req.Volume
	if volume <= 0 {
		volume = c.config.TTSVolume
	}
	if volume > 0 && volume != 1.0 {
		payload.ReqParams.AudioParams.VolumeRatio = volume
	}

	language := strings.TrimSpace(req.Language)
	if language == "" {
		language = strings.TrimSpace(c.config.TTSLanguage)
	}
	payload.ReqParams.Language = language

	// 诗歌是纯文本，开启 markdown 过滤会吞掉行首符号
	payload.ReqParams.Additions = `{"disable_markdown_filter":true}`

	return payload, uid
}
