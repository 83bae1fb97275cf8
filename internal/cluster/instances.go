package cluster

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"integctl/pkg/logging"
)

// streamRetryInterval is how long StreamLogs waits before looking for a pod
// again after a stream ended or no pod existed.
var streamRetryInterval = 2 * time.Second

func (c *Client) listPods(ctx context.Context, sel Selector) ([]corev1.Pod, error) {
	pods, err := c.cs.Kube.CoreV1().Pods(c.namespace).List(ctx, metav1.ListOptions{LabelSelector: sel.String()})
	if err != nil {
		return nil, fmt.Errorf("failed to list pods with %s: %w", sel, classify(err))
	}
	items := pods.Items
	sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })
	return items, nil
}

// ListInstances returns the application's pods ordered by name.
func (c *Client) ListInstances(ctx context.Context, sel Selector) ([]Instance, error) {
	pods, err := c.listPods(ctx, sel)
	if err != nil {
		return nil, err
	}
	instances := make([]Instance, 0, len(pods))
	for i := range pods {
		instances = append(instances, instanceFromPod(&pods[i]))
	}
	return instances, nil
}

// Logs returns the concatenated logs of all current pods.
func (c *Client) Logs(ctx context.Context, sel Selector) (string, error) {
	pods, err := c.listPods(ctx, sel)
	if err != nil {
		return "", err
	}
	if len(pods) == 0 {
		return "", fmt.Errorf("no pods with %s: %w", sel, ErrNotFound)
	}

	var sb strings.Builder
	for _, pod := range pods {
		data, err := c.cs.Kube.CoreV1().Pods(c.namespace).GetLogs(pod.Name, &corev1.PodLogOptions{}).DoRaw(ctx)
		if err != nil {
			logging.Debug("Cluster", "Failed to read logs of pod %s: %v", pod.Name, err)
			continue
		}
		if len(pods) > 1 {
			fmt.Fprintf(&sb, "==> %s <==\n", pod.Name)
		}
		sb.Write(data)
		if len(data) > 0 && data[len(data)-1] != '\n' {
			sb.WriteByte('\n')
		}
	}
	return sb.String(), nil
}

// StreamLogs follows the logs of the application's first pod into w until
// ctx is cancelled. When the pod goes away, or none exists yet, it waits and
// picks up whichever pod matches next.
func (c *Client) StreamLogs(ctx context.Context, sel Selector, w io.Writer) error {
	for {
		if err := c.followFirstPod(ctx, sel, w); err != nil {
			logging.Debug("Cluster", "Log stream for %s interrupted: %v", sel, err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(streamRetryInterval):
		}
	}
}

func (c *Client) followFirstPod(ctx context.Context, sel Selector, w io.Writer) error {
	pods, err := c.listPods(ctx, sel)
	if err != nil {
		return err
	}
	if len(pods) == 0 {
		return ErrNotFound
	}
	stream, err := c.cs.Kube.CoreV1().Pods(c.namespace).
		GetLogs(pods[0].Name, &corev1.PodLogOptions{Follow: true}).
		Stream(ctx)
	if err != nil {
		return err
	}
	defer stream.Close()
	_, err = io.Copy(w, stream)
	return err
}
