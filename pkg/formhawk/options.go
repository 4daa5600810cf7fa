package formhawk

import (
	"io"
	"net/http"
	"time"

	"github.com/formhawk/formhawk/internal/logger"
)

// Option is a functional option for configuring the Scanner.
type Option func(*Scanner) error

// WithConfig sets the entire configuration.
func WithConfig(config *Config) Option {
	return func(s *Scanner) error {
		s.config = config
		return nil
	}
}

// WithWorkers sets the number of concurrent workers.
func WithWorkers(n int) Option {
	return func(s *Scanner) error {
		if n < 1 {
			n = 1
		}
		s.config.Workers = n
		return nil
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(s *Scanner) error {
		s.config.Timeout = timeout
		return nil
	}
}

// WithRateLimit sets the fetch rate limit.
func WithRateLimit(rps float64, burst int) Option {
	return func(s *Scanner) error {
		s.config.RateLimit.RequestsPerSecond = rps
		s.config.RateLimit.Burst = burst
		return nil
	}
}

// WithUserAgent sets the user agent string.
func WithUserAgent(ua string) Option {
	return func(s *Scanner) error {
		s.config.UserAgent = ua
		return nil
	}
}

// WithCustomHeaders sets custom headers for all requests.
func WithCustomHeaders(headers map[string]string) Option {
	return func(s *Scanner) error {
		if s.config.Headers == nil {
			s.config.Headers = make(map[string]string)
		}
		for k, v := range headers {
			s.config.Headers[k] = v
		}
		return nil
	}
}

// WithCookies sets cookies to include in requests.
func WithCookies(cookies []*http.Cookie) Option {
	return func(s *Scanner) error {
		s.cookies = cookies
		return nil
	}
}

// WithInsecureTLS disables TLS certificate verification.
func WithInsecureTLS(insecure bool) Option {
	return func(s *Scanner) error {
		s.config.InsecureTLS = insecure
		return nil
	}
}

// WithTokenNamePatterns sets the token naming conventions to match.
func WithTokenNamePatterns(patterns ...string) Option {
	return func(s *Scanner) error {
		s.config.Analysis.TokenNamePatterns = patterns
		return nil
	}
}

// WithMinTokenLength sets the minimum acceptable token length.
func WithMinTokenLength(n int) Option {
	return func(s *Scanner) error {
		s.config.Analysis.MinTokenLength = n
		return nil
	}
}

// WithEntropyThreshold sets the entropy threshold in bits per character.
func WithEntropyThreshold(threshold float64) Option {
	return func(s *Scanner) error {
		s.config.Analysis.EntropyThreshold = threshold
		return nil
	}
}

// WithMutatingPathVerbs sets the GET-action path verbs treated as mutating.
func WithMutatingPathVerbs(verbs ...string) Option {
	return func(s *Scanner) error {
		s.config.Analysis.MutatingPathVerbs = verbs
		return nil
	}
}

// WithPlaceholderValues sets the token values treated as placeholders.
func WithPlaceholderValues(values ...string) Option {
	return func(s *Scanner) error {
		s.config.Analysis.PlaceholderValues = values
		return nil
	}
}

// WithOutput sets the output destination.
func WithOutput(w io.Writer) Option {
	return func(s *Scanner) error {
		s.outputWriter = w
		return nil
	}
}

// WithOutputFile sets the output file path.
func WithOutputFile(path string) Option {
	return func(s *Scanner) error {
		s.config.Output.FilePath = path
		return nil
	}
}

// WithFormat sets the output format ("text" or "json").
func WithFormat(format string) Option {
	return func(s *Scanner) error {
		s.config.Output.Format = format
		return nil
	}
}

// WithPrettyOutput enables/disables pretty JSON output.
func WithPrettyOutput(pretty bool) Option {
	return func(s *Scanner) error {
		s.config.Output.Pretty = pretty
		return nil
	}
}

// WithStreamMode enables streaming output mode.
func WithStreamMode(stream bool) Option {
	return func(s *Scanner) error {
		s.config.Output.Stream = stream
		return nil
	}
}

// WithStateFile enables report persistence at the given path.
func WithStateFile(path string) Option {
	return func(s *Scanner) error {
		s.config.State.FilePath = path
		return nil
	}
}

// WithVerbose enables/disables verbose logging.
func WithVerbose(verbose bool) Option {
	return func(s *Scanner) error {
		s.config.Verbose = verbose
		return nil
	}
}

// WithDebug enables/disables debug mode.
func WithDebug(debug bool) Option {
	return func(s *Scanner) error {
		s.config.Debug = debug
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(l *logger.Logger) Option {
	return func(s *Scanner) error {
		s.logger = l
		return nil
	}
}
