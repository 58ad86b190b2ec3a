// Licensed to the LF AI & Data foundation under one
// or more contributor license agreements. See the NOTICE file
// distributed with this work for additional information
// regarding copyright ownership. The ASF licenses this file
// to you under the Apache License, Version 2.0 (the
// "License"); you may not use this file except in compliance
// with the License. You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// morphNamespace 是当前项目所有 Prometheus 指标使用的命名空间。
	morphNamespace = "morph"

	conversionSubsystem = "conversion"
	metadataSubsystem   = "metadata"

	BackendLabelName    = "backend"
	ProjectionLabelName = "projection"
	DirectionLabelName  = "direction"
	StatusLabelName     = "status"
	KindLabelName       = "kind"

	DirectionDown = "down"
	DirectionUp   = "up"

	StatusSuccess = "success"
	StatusFail    = "fail"
	StatusAsync   = "async"
)

var (
	// buckets 为转换耗时直方图的桶划分，单位为微秒。
	// 实际桶分布为：
	// [1 2 4 8 16 32 64 128 256 512 1024 2048 4096 8192 16384 32768 65536 1.31072e+05]
	buckets = prometheus.ExponentialBuckets(1, 2, 18)

	// ConversionTotal 统计每个后端与投影下 deflate/inflate 的调用次数。
	ConversionTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: morphNamespace,
			Subsystem: conversionSubsystem,
			Name:      "total",
			Help:      "deflate/inflate 调用次数",
		}, []string{BackendLabelName, ProjectionLabelName, DirectionLabelName, StatusLabelName})

	ConversionLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: morphNamespace,
			Subsystem: conversionSubsystem,
			Name:      "latency",
			Help:      "deflate/inflate 同步阶段耗时（微秒）",
			Buckets:   buckets,
		}, []string{BackendLabelName, DirectionLabelName})

	// PendingPromises 为尚未完成的异步转换数量。
	PendingPromises = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: morphNamespace,
			Subsystem: conversionSubsystem,
			Name:      "pending_promises",
			Help:      "尚未完成的异步转换数量",
		})

	// ContainerNum 为已注册的元数据容器数量，kind 为 property_bag 或 custom。
	ContainerNum = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: morphNamespace,
			Subsystem: metadataSubsystem,
			Name:      "container_num",
			Help:      "已注册的元数据容器数量",
		}, []string{BackendLabelName, ProjectionLabelName, KindLabelName})

	metricRegisterer prometheus.Registerer
	registerOnce     sync.Once
)

// GetRegisterer 返回全局 Prometheus Registerer。
// 如果尚未通过 Register 显式设置，则返回 prometheus.DefaultRegisterer。
func GetRegisterer() prometheus.Registerer {
	if metricRegisterer == nil {
		return prometheus.DefaultRegisterer
	}
	return metricRegisterer
}

// Register 注册当前定义的所有指标，重复调用只生效一次。
func Register(r prometheus.Registerer) {
	registerOnce.Do(func() {
		r.MustRegister(ConversionTotal)
		r.MustRegister(ConversionLatency)
		r.MustRegister(PendingPromises)
		r.MustRegister(ContainerNum)
		metricRegisterer = r
	})
}
