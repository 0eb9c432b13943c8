package event

import (
	"encoding/json"
	"fmt"
)

// EncodePush はプッシュメッセージをワイヤ形式（JSON）にシリアライズする。
func EncodePush(msg PushMessage) ([]byte, error) {
	if msg.Event == "" {
		return nil, fmt.Errorf("プッシュメッセージのイベント名が空です")
	}
	b, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("プッシュメッセージのシリアライズに失敗: %w", err)
	}
	return b, nil
}

// DecodePush はワイヤ形式のプッシュメッセージをデシリアライズする。
func DecodePush(b []byte) (PushMessage, error) {
	var msg PushMessage
	if err := json.Unmarshal(b, &msg); err != nil {
		return PushMessage{}, fmt.Errorf("プッシュメッセージのデシリアライズに失敗: %w", err)
	}
	return msg, nil
}
