package cluster

import (
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
)

type unstructuredService struct {
	name   string
	labels map[string]interface{}
}

func (s *unstructuredService) object() *unstructured.Unstructured {
	return &unstructured.Unstructured{Object: map[string]interface{}{
		"apiVersion": "v1",
		"kind":       "Service",
		"metadata": map[string]interface{}{
			"name":      s.name,
			"namespace": testNamespace,
			"labels":    s.labels,
		},
	}}
}
