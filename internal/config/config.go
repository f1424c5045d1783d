package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

const (
	ModeTest = "test"
	ModeLive = "live"
)

const (
	mercadopagoTestPrefix = "TEST-"
	mercadopagoLivePrefix = "APP_USR-"
)

type Config struct {
	Environment Environment
	Log         Log
	HTTP        HTTPServer
	Database    Database

	PublicBaseURL   string        `env:"PUBLIC_BASE_URL"`
	WebhookSecret   string        `env:"WEBHOOK_SECRET"`
	PaymentMode     string        `env:"PAYMENT_MODE" envDefault:"test"`
	ProviderTimeout time.Duration `env:"PROVIDER_TIMEOUT" envDefault:"15s"`

	Auth        Auth        `envPrefix:"AUTH_"`
	MercadoPago MercadoPago `envPrefix:"MERCADOPAGO_"`
	Paypal      Paypal      `envPrefix:"PAYPAL_"`
}

type Auth struct {
	JWTSecret string `env:"JWT_SECRET"`
	Issuer    string `env:"ISSUER"`
}

type MercadoPago struct {
	BaseApiURL      string `env:"BASE_API_URL" envDefault:"https://api.mercadopago.com"`
	TestAccessToken string `env:"TEST_ACCESS_TOKEN"`
	LiveAccessToken string `env:"LIVE_ACCESS_TOKEN"`
	DefaultCurrency string `env:"DEFAULT_CURRENCY" envDefault:"ARS"`
}

type Paypal struct {
	TestBaseApiURL   string `env:"TEST_BASE_API_URL" envDefault:"https://api-m.sandbox.paypal.com"`
	LiveBaseApiURL   string `env:"LIVE_BASE_API_URL" envDefault:"https://api-m.paypal.com"`
	TestClientID     string `env:"TEST_CLIENT_ID"`
	TestClientSecret string `env:"TEST_CLIENT_SECRET"`
	LiveClientID     string `env:"LIVE_CLIENT_ID"`
	LiveClientSecret string `env:"LIVE_CLIENT_SECRET"`
	DefaultCurrency  string `env:"DEFAULT_CURRENCY" envDefault:"USD"`
}

// PaypalCredentials is the credential set selected by the payment mode.
type PaypalCredentials struct {
	BaseApiURL   string
	ClientID     string
	ClientSecret string
}

type Environment struct {
	Name string `env:"ENVIRONMENT" envDefault:"development"`
}

type Log struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

type HTTPServer struct {
	Host string `env:"HTTP_HOST" envDefault:"0.0.0.0"`
	Port string `env:"HTTP_PORT" envDefault:"8080"`
}

type Database struct {
	Driver string `env:"DATABASE_DRIVER" envDefault:"mysql"`
	URL    string `env:"DATABASE_URL"`
}

// IsLive reports whether real money moves.
func (c *Config) IsLive() bool {
	return c.PaymentMode == ModeLive
}

// Validate checks the invariants that must hold before the process serves
// any request. It is called once at startup.
func (c *Config) Validate() error {
	var errs []error

	switch c.PaymentMode {
	case ModeTest, ModeLive:
	default:
		errs = append(errs, fmt.Errorf("PAYMENT_MODE must be %q or %q, got %q", ModeTest, ModeLive, c.PaymentMode))
	}

	if strings.TrimSpace(c.WebhookSecret) == "" {
		errs = append(errs, errors.New("WEBHOOK_SECRET is required"))
	}
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		errs = append(errs, errors.New("AUTH_JWT_SECRET is required"))
	}
	if c.ProviderTimeout <= 0 {
		errs = append(errs, errors.New("PROVIDER_TIMEOUT must be positive"))
	}
	if c.PublicBaseURL != "" {
		if u, err := url.Parse(c.PublicBaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("PUBLIC_BASE_URL must be an absolute URL, got %q", c.PublicBaseURL))
		}
	}

	if c.PaymentMode == ModeTest || c.PaymentMode == ModeLive {
		if err := c.MercadoPago.validate(c.PaymentMode); err != nil {
			errs = append(errs, err)
		}
		if err := c.Paypal.validate(c.PaymentMode); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// AccessToken returns the MercadoPago token for the given mode.
func (m MercadoPago) AccessToken(mode string) string {
	if mode == ModeLive {
		return m.LiveAccessToken
	}
	return m.TestAccessToken
}

func (m MercadoPago) validate(mode string) error {
	token := strings.TrimSpace(m.AccessToken(mode))
	if token == "" {
		return fmt.Errorf("MERCADOPAGO_%s_ACCESS_TOKEN is required in %s mode", strings.ToUpper(mode), mode)
	}

	want, other := mercadopagoTestPrefix, mercadopagoLivePrefix
	if mode == ModeLive {
		want, other = mercadopagoLivePrefix, mercadopagoTestPrefix
	}
	if strings.HasPrefix(token, other) {
		return fmt.Errorf("mercadopago access token has %q prefix but PAYMENT_MODE is %s", other, mode)
	}
	if !strings.HasPrefix(token, want) {
		return fmt.Errorf("mercadopago access token must start with %q in %s mode", want, mode)
	}
	return nil
}

// Credentials returns the PayPal credential set for the given mode.
func (p Paypal) Credentials(mode string) PaypalCredentials {
	if mode == ModeLive {
		return PaypalCredentials{
			BaseApiURL:   p.LiveBaseApiURL,
			ClientID:     p.LiveClientID,
			ClientSecret: p.LiveClientSecret,
		}
	}
	return PaypalCredentials{
		BaseApiURL:   p.TestBaseApiURL,
		ClientID:     p.TestClientID,
		ClientSecret: p.TestClientSecret,
	}
}

func (p Paypal) validate(mode string) error {
	creds := p.Credentials(mode)
	if strings.TrimSpace(creds.ClientID) == "" || strings.TrimSpace(creds.ClientSecret) == "" {
		return fmt.Errorf("PAYPAL_%s_CLIENT_ID and PAYPAL_%s_CLIENT_SECRET are required in %s mode",
			strings.ToUpper(mode), strings.ToUpper(mode), mode)
	}

	u, err := url.Parse(creds.BaseApiURL)
	if err != nil || u.Host == "" {
		return fmt.Errorf("invalid paypal base api url %q", creds.BaseApiURL)
	}
	sandbox := strings.Contains(u.Host, "sandbox")
	if mode == ModeTest && !sandbox {
		return fmt.Errorf("paypal base api url %q is not a sandbox host but PAYMENT_MODE is test", creds.BaseApiURL)
	}
	if mode == ModeLive && sandbox {
		return fmt.Errorf("paypal base api url %q is a sandbox host but PAYMENT_MODE is live", creds.BaseApiURL)
	}
	return nil
}
