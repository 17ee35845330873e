package cdp

import (
	"encoding/json"
	"fmt"

	"github.com/mafredri/cdp/devtool"

	"atsassist/internal/messaging"
	"atsassist/pkg/domain"
)

// PageEventName 页面内接收后台通知的事件名
const PageEventName = "atsassist:message"

// ToTabInfo 将 DevTools 目标转换为中立的标签页模型
func ToTabInfo(t *devtool.Target) domain.TabInfo {
	return domain.TabInfo{
		ID:    domain.TargetID(t.ID),
		Type:  string(t.Type),
		URL:   t.URL,
		Title: t.Title,
	}
}

// NotifyScript 生成在页面中派发通知事件的脚本
func NotifyScript(n messaging.Notification) (string, error) {
	detail, err := json.Marshal(n)
	if err != nil {
		return "", err
	}
	name, _ := json.Marshal(PageEventName)
	return fmt.Sprintf("window.dispatchEvent(new CustomEvent(%s, {detail: %s})); true", name, detail), nil
}
