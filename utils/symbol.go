package utils

import "strings"

// NormalizeTicker 把 KRX 代码整理为 6 位
// 纯数字代码左侧补 0；"5930.0" 这类被表格软件转成浮点的代码也能还原
func NormalizeTicker(code string) (string, bool) {
	code = strings.TrimSpace(code)
	if len(code) == 7 && code[0] == 'A' { // 部分数据源带 A 前缀
		code = code[1:]
	}
	if i := strings.IndexByte(code, '.'); i >= 0 && strings.Trim(code[i+1:], "0") == "" {
		code = code[:i]
	}

	if code == "" || len(code) > 6 {
		return code, false
	}

	digits := true
	for _, r := range code {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'A' && r <= 'Z':
			digits = false
		default:
			return code, false
		}
	}

	if digits {
		return strings.Repeat("0", 6-len(code)) + code, true
	}
	return code, len(code) == 6
}
