package ingest

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"strings"
	"time"

	"authwatch/internal/config"
)

func StartSyslog(ctx context.Context, cfg *config.Manager, out chan<- Line, logger *slog.Logger) {
	current := cfg.Get().Ingest.Syslog
	if !current.Enabled {
		if logger != nil {
			logger.Info("syslog ingest disabled")
		}
		return
	}
	if logger != nil {
		logger.Info("syslog ingest enabled", "udp_addr", current.UDPAddr, "tcp_addr", current.TCPAddr)
	}
	if current.UDPAddr != "" {
		go listenUDP(ctx, current.UDPAddr, out, logger)
	}
	if current.TCPAddr != "" {
		go listenTCP(ctx, current.TCPAddr, "syslog", out, logger)
	}
}

func listenUDP(ctx context.Context, addr string, out chan<- Line, logger *slog.Logger) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		if logger != nil {
			logger.Error("syslog udp resolve error", "err", err)
		}
		return
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		if logger != nil {
			logger.Error("syslog udp listen error", "err", err)
		}
		return
	}
	defer conn.Close()
	buf := make([]byte, 16384)
	for {
		select {
		case <-ctx.Done():
			return
		default:
			conn.SetReadDeadline(time.Now().Add(1 * time.Second))
			n, _, err := conn.ReadFromUDP(buf)
			if err != nil {
				if ne, ok := err.(net.Error); ok && ne.Timeout() {
					continue
				}
				if logger != nil {
					logger.Warn("syslog udp read error", "err", err)
				}
				continue
			}
			for _, line := range strings.Split(string(buf[:n]), "\n") {
				if strings.TrimSpace(line) == "" {
					continue
				}
				SendNonBlocking(ctx, out, Line{Source: "syslog", Text: line}, logger)
			}
		}
	}
}

func listenTCP(ctx context.Context, addr, source string, out chan<- Line, logger *slog.Logger) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		if logger != nil {
			logger.Error("tcp listen error", "source", source, "addr", addr, "err", err)
		}
		return
	}
	defer ln.Close()
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			if logger != nil {
				logger.Warn("tcp accept error", "source", source, "err", err)
			}
			continue
		}
		go func(c net.Conn) {
			defer c.Close()
			readLines(ctx, c, source, out, logger)
		}(conn)
	}
}
