package protocol

import "encoding/json"

// ConnectOptions is the JSON payload sent as "CONNECT {...}\r\n" during
// the handshake, grounded on original_source/src/main.rs's
// build_connect_options. Field order and presence follow the NATS client
// protocol; omitempty keeps unselected credential fields out of the wire
// payload rather than sending them as empty strings.
type ConnectOptions struct {
	NoResponders bool   `json:"no_responders"`
	Protocol     int    `json:"protocol"`
	Verbose      bool   `json:"verbose"`
	Pedantic     bool   `json:"pedantic"`
	Headers      bool   `json:"headers"`
	Lang         string `json:"lang"`
	Version      string `json:"version"`

	JWT  string `json:"jwt,omitempty"`
	Sig  string `json:"sig,omitempty"`
	Auth string `json:"auth_token,omitempty"`
	User string `json:"user,omitempty"`
	Pass string `json:"pass,omitempty"`
}

// BuildConnectOptions applies the credential precedence table: a JWT
// credential wins (with its signature, if one was supplied), otherwise an
// auth token (sent as auth_token), otherwise a user/pass pair.
func BuildConnectOptions(creds Credentials) ConnectOptions {
	opts := ConnectOptions{
		NoResponders: true,
		Protocol:     1,
		Verbose:      false,
		Pedantic:     false,
		Headers:      true,
		Lang:         "nats.ws",
		Version:      "1.30.3",
	}

	switch {
	case creds.HasJWT:
		opts.JWT = creds.JWT
		opts.Sig = creds.Sig
	case creds.HasToken:
		opts.Auth = creds.Token
	default:
		opts.User = creds.User
		opts.Pass = creds.Pass
	}

	return opts
}

// Credentials is the CONNECT credential input, mirroring
// config.Credentials without internal/protocol importing internal/config
// (the config package instead imports nothing from us; the caller
// converts its own config.Credentials into this shape at the call site).
type Credentials struct {
	JWT      string
	Sig      string
	Token    string
	User     string
	Pass     string
	HasJWT   bool
	HasToken bool
}

// EncodeConnectLine renders "CONNECT {json}\r\n" ready for the wire.
func EncodeConnectLine(opts ConnectOptions) ([]byte, error) {
	body, err := json.Marshal(opts)
	if err != nil {
		return nil, err
	}
	line := append([]byte("CONNECT "), body...)
	line = append(line, '\r', '\n')
	return line, nil
}
