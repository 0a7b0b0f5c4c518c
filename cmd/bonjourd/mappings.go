package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dep2p/go-bonjour"
)

// mappingArg 一条命令行指定的端口映射
type mappingArg struct {
	protocol bonjour.Protocol
	internal uint16
	external uint16
	ttl      uint32
}

// String 返回 proto:internal[:external] 形式
func (m mappingArg) String() string {
	proto := "udp"
	switch m.protocol {
	case bonjour.ProtocolTCP:
		proto = "tcp"
	case bonjour.ProtocolNone:
		return "address"
	}
	if m.external == 0 {
		return fmt.Sprintf("%s:%d", proto, m.internal)
	}
	return fmt.Sprintf("%s:%d:%d", proto, m.internal, m.external)
}

// mappingList 可重复的 -map 参数
type mappingList []mappingArg

func (l *mappingList) String() string {
	parts := make([]string, 0, len(*l))
	for _, m := range *l {
		parts = append(parts, m.String())
	}
	return strings.Join(parts, ",")
}

func (l *mappingList) Set(value string) error {
	m, err := parseMapping(value)
	if err != nil {
		return err
	}
	*l = append(*l, m)
	return nil
}

// parseMapping 解析 proto:internal[:external[:ttl]] 或 address
func parseMapping(value string) (mappingArg, error) {
	if value == "address" {
		return mappingArg{protocol: bonjour.ProtocolNone}, nil
	}

	parts := strings.Split(value, ":")
	if len(parts) < 2 || len(parts) > 4 {
		return mappingArg{}, fmt.Errorf("invalid mapping %q: want proto:port[:external[:ttl]]", value)
	}

	var m mappingArg
	switch strings.ToLower(parts[0]) {
	case "udp":
		m.protocol = bonjour.ProtocolUDP
	case "tcp":
		m.protocol = bonjour.ProtocolTCP
	default:
		return mappingArg{}, fmt.Errorf("invalid mapping %q: unknown protocol %q", value, parts[0])
	}

	port, err := parsePort(parts[1])
	if err != nil || port == 0 {
		return mappingArg{}, fmt.Errorf("invalid mapping %q: %w", value, bonjour.ErrInvalidPort)
	}
	m.internal = port

	if len(parts) > 2 {
		if m.external, err = parsePort(parts[2]); err != nil {
			return mappingArg{}, fmt.Errorf("invalid mapping %q: %w", value, bonjour.ErrInvalidPort)
		}
	}
	if len(parts) > 3 {
		ttl, err := strconv.ParseUint(parts[3], 10, 32)
		if err != nil {
			return mappingArg{}, fmt.Errorf("invalid mapping %q: ttl: %w", value, err)
		}
		m.ttl = uint32(ttl)
	}
	return m, nil
}

func parsePort(s string) (uint16, error) {
	n, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		return 0, err
	}
	return uint16(n), nil
}
