package consul

import "encoding/base64"

// DecodeValue 解码 KV 负载。纯函数，不缓存。
func DecodeValue(encoded string) (string, error) {
	b, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// EncodeValue DecodeValue 的逆操作，供测试与开发代理使用
func EncodeValue(raw string) string {
	return base64.StdEncoding.EncodeToString([]byte(raw))
}
