package storage

import (
	"encoding/json"
	"errors"
	"net"

	"github.com/leonardcser/persisted-map/internal/logger"
)

// Serve accepts connections on l and answers protocol requests against area
// until l is closed.
func Serve(l net.Listener, area Area) error {
	for {
		conn, err := l.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			logger.Warnf("store accept: %v", err)
			continue
		}
		go handleConn(conn, area)
	}
}

func handleConn(conn net.Conn, area Area) {
	defer conn.Close()
	dec := json.NewDecoder(conn)
	enc := json.NewEncoder(conn)
	for {
		var req Request
		if err := dec.Decode(&req); err != nil {
			return
		}
		_ = enc.Encode(dispatch(area, req))
	}
}

func dispatch(area Area, req Request) Response {
	switch req.Op {
	case "ping":
		return Response{OK: true}
	case "get":
		v, found, err := area.GetItem(req.Key)
		if err != nil {
			return Response{OK: false, Error: err.Error()}
		}
		return Response{OK: true, Found: found, Value: v}
	case "set":
		if err := area.SetItem(req.Key, req.Value); err != nil {
			return Response{OK: false, Error: err.Error()}
		}
		return Response{OK: true}
	case "remove":
		if err := area.RemoveItem(req.Key); err != nil {
			return Response{OK: false, Error: err.Error()}
		}
		return Response{OK: true}
	default:
		return Response{OK: false, Error: "unknown op"}
	}
}
