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
	// binnNamespace 是当前项目所有 Prometheus 指标使用的命名空间。
	binnNamespace = "binn"

	codecSubsystem = "codec"
	cacheSubsystem = "property_cache"

	opLabelName     = "op"
	statusLabelName = "status"
	codeLabelName   = "code"
	resultLabelName = "result"

	EncodeLabel  = "encode"
	DecodeLabel  = "decode"
	SuccessLabel = "success"
	FailLabel    = "fail"
	HitLabel     = "hit"
	MissLabel    = "miss"
)

var (
	// payloadBuckets 为载荷大小的桶划分，单位字节：16B 到 16MB。
	payloadBuckets = prometheus.ExponentialBuckets(16, 4, 11)

	CodecCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: binnNamespace,
			Subsystem: codecSubsystem,
			Name:      "calls_total",
			Help:      "编码/解码调用次数",
		}, []string{opLabelName, statusLabelName})

	CodecFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: binnNamespace,
			Subsystem: codecSubsystem,
			Name:      "failures_total",
			Help:      "按错误码统计的编码/解码失败次数",
		}, []string{opLabelName, codeLabelName})

	CodecPayloadBytes = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: binnNamespace,
			Subsystem: codecSubsystem,
			Name:      "payload_bytes",
			Help:      "单次编码输出或解码输入的字节数",
			Buckets:   payloadBuckets,
		}, []string{opLabelName})

	PropertyCacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: binnNamespace,
			Subsystem: cacheSubsystem,
			Name:      "lookups_total",
			Help:      "属性缓存查询次数，按命中与未命中区分",
		}, []string{resultLabelName})

	PropertyCacheTypes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: binnNamespace,
			Subsystem: cacheSubsystem,
			Name:      "types",
			Help:      "属性缓存中已解析的类型数量",
		})

	registerOnce     sync.Once
	metricRegisterer prometheus.Registerer
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
		r.MustRegister(CodecCalls)
		r.MustRegister(CodecFailures)
		r.MustRegister(CodecPayloadBytes)
		r.MustRegister(PropertyCacheLookups)
		r.MustRegister(PropertyCacheTypes)
		metricRegisterer = r
	})
}
