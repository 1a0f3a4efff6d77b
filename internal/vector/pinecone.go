package vector

import (
	"context"
	"errors"
	"fmt"

	"github.com/pinecone-io/go-pinecone/v3/pinecone"
)

// PineconeOptions identifies a Pinecone index. Host is optional when Index is set:
// it is then resolved through the control plane.
type PineconeOptions struct {
	APIKey    string
	Index     string
	Host      string
	Namespace string
}

// DialPinecone connects to a Pinecone index namespace.
func DialPinecone(ctx context.Context, opts PineconeOptions) (*RemoteIndex, error) {
	if opts.APIKey == "" {
		return nil, ErrMissingCredentials
	}
	if opts.Index == "" && opts.Host == "" {
		return nil, errors.New("vector: pinecone index name or host is required")
	}
	pc, err := pinecone.NewClient(pinecone.NewClientParams{ApiKey: opts.APIKey})
	if err != nil {
		return nil, fmt.Errorf("create pinecone client: %w", err)
	}

	var describe DimensionFunc
	host := opts.Host
	if opts.Index != "" {
		describe = func(ctx context.Context) (int, error) {
			idx, err := pc.DescribeIndex(ctx, opts.Index)
			if err != nil {
				return 0, fmt.Errorf("pinecone describe index %s: %w", opts.Index, err)
			}
			if idx.Dimension == nil {
				return 0, ErrDimensionUnknown
			}
			return int(*idx.Dimension), nil
		}
		if host == "" {
			idx, err := pc.DescribeIndex(ctx, opts.Index)
			if err != nil {
				return nil, fmt.Errorf("pinecone describe index %s: %w", opts.Index, err)
			}
			host = idx.Host
		}
	}

	conn, err := pc.Index(pinecone.NewIndexConnParams{Host: host, Namespace: opts.Namespace})
	if err != nil {
		return nil, fmt.Errorf("connect pinecone index %s: %w", host, err)
	}
	return NewRemoteIndex(conn, WithNamespace(opts.Namespace), WithDescriber(describe)), nil
}
