package k8s

import (
	"fmt"

	"go.uber.org/zap"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

// Client wraps the Kubernetes client
type Client struct {
	clientset kubernetes.Interface
	logger    *zap.Logger
}

// NewClient creates a new Kubernetes client. An empty kubeConfigPath means
// the autoscaler runs inside the cluster.
func NewClient(kubeConfigPath string, logger *zap.Logger) (*Client, error) {
	var config *rest.Config
	var err error

	if kubeConfigPath == "" {
		config, err = rest.InClusterConfig()
		if err != nil {
			return nil, fmt.Errorf("failed to create in-cluster config: %w", err)
		}
	} else {
		config, err = clientcmd.BuildConfigFromFlags("", kubeConfigPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create kubeconfig: %w", err)
		}
	}

	clientset, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create K8s clientset: %w", err)
	}

	return NewFromClientset(clientset, logger), nil
}

// NewFromClientset wraps an existing clientset.
func NewFromClientset(clientset kubernetes.Interface, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		clientset: clientset,
		logger:    logger,
	}
}

// GetClientset returns the underlying K8s clientset
func (c *Client) GetClientset() kubernetes.Interface {
	return c.clientset
}
