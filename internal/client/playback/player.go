package playback

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
)

// ExecPlayer 将音频通过管道交给外部命令播放，如 "ffplay -nodisp -autoexit -"
type ExecPlayer struct {
	command []string
}

// NewExecPlayer 创建播放器，命令不在 PATH 中时返回错误
func NewExecPlayer(command []string) (*ExecPlayer, error) {
	if len(command) == 0 {
		return nil, errors.New("player command is empty")
	}
	if _, err := exec.LookPath(command[0]); err != nil {
		return nil, fmt.Errorf("player %q not found: %w", command[0], err)
	}
	return &ExecPlayer{command: command}, nil
}

// Play 阻塞直到命令退出，取消 ctx 会杀死进程
func (p *ExecPlayer) Play(ctx context.Context, audio []byte, _ string) error {
	cmd := exec.CommandContext(ctx, p.command[0], p.command[1:]...)
	cmd.Stdin = bytes.NewReader(audio)
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%s: %w", p.command[0], err)
	}
	return nil
}
