package realtime

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// ErrSessionClosed は既に閉じられたセッションへ送信しようとしたことを表す。
var ErrSessionClosed = errors.New("セッションは既に閉じられています")

// maxMessageSize はクライアントから受け付けるメッセージの最大サイズ。
// クライアントからのメッセージは切断検知のために読むだけで処理しない。
const maxMessageSize = 512

// conn は1本のWebSocket接続。session.Transportを実装する。
type conn struct {
	// ws はWebSocket接続。書き込みはwriteLoopだけが行う。
	ws *websocket.Conn
	// outbound は送信待ちのペイロード。順序はこのバッファで保たれる。
	outbound chan []byte
	// done は接続の終了を通知する。
	done chan struct{}
	// once はshutdownを一度だけ実行する。
	once sync.Once
	// onClose は接続を閉じる直前に呼ばれる。レジストリからの除去に使う。
	onClose func()
	// opts はタイムアウトなどの接続設定。
	opts Options
	// logger は接続のロガー。
	logger zerolog.Logger
}

func newConn(ws *websocket.Conn, opts Options, onClose func(), logger zerolog.Logger) *conn {
	return &conn{
		ws:       ws,
		outbound: make(chan []byte, opts.BufferSize),
		done:     make(chan struct{}),
		onClose:  onClose,
		opts:     opts,
		logger:   logger,
	}
}

// Send はペイロードを送信バッファへ積む。
// バッファが満杯の場合はctxの期限まで待ち、それでも空かなければ諦める。
func (c *conn) Send(ctx context.Context, payload []byte) error {
	select {
	case <-c.done:
		return ErrSessionClosed
	default:
	}

	select {
	case c.outbound <- payload:
		return nil
	case <-c.done:
		return ErrSessionClosed
	case <-ctx.Done():
		return fmt.Errorf("送信バッファが満杯です: %w", ctx.Err())
	}
}

// Close は接続を閉じる。複数回呼んでもよい。
func (c *conn) Close() error {
	c.shutdown()
	return nil
}

// shutdown はレジストリから除去した後で接続を閉じる。
// 読み込み側の切断検知、書き込み失敗、サーバー停止のいずれからも呼ばれる。
func (c *conn) shutdown() {
	c.once.Do(func() {
		if c.onClose != nil {
			c.onClose()
		}
		close(c.done)

		deadline := time.Now().Add(c.opts.WriteWait)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		if err := c.ws.WriteControl(websocket.CloseMessage, msg, deadline); err != nil && !errors.Is(err, websocket.ErrCloseSent) {
			c.logger.Debug().Err(err).Msg("クローズフレームの送信に失敗")
		}
		if err := c.ws.Close(); err != nil {
			c.logger.Debug().Err(err).Msg("WebSocketのクローズに失敗")
		}
	})
}

// readLoop はクライアントの切断を検知するまで読み込みを続ける。
// pongを受け取るたびに読み込み期限を延長する。
func (c *conn) readLoop() {
	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	})

	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				c.logger.Debug().Err(err).Msg("接続が予期せず切断されました")
			}
			return
		}
	}
}

// writeLoop は送信バッファの内容とpingを順に書き込む。
// 書き込みに失敗した時点で接続を閉じる。
func (c *conn) writeLoop() {
	ticker := time.NewTicker(c.opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case payload := <-c.outbound:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.logger.Warn().Err(err).Msg("メッセージの書き込みに失敗")
				c.shutdown()
				return
			}
		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.opts.WriteWait)); err != nil {
				c.logger.Debug().Err(err).Msg("pingの送信に失敗")
				c.shutdown()
				return
			}
		}
	}
}
