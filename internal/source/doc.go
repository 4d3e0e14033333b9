// Package source 聚合所有第三方数据源的元数据，并提供统一的注册入口。
//
// 数据源作者需要：
//   1. 在 internal/source/<source-key>/ 目录下实现回源逻辑与数据形状；
//   2. 通过本包暴露的 MustRegister 在 init() 中注册默认策略；
//   3. 通过 policy.SourceConfig 将策略交给共享的 Engine，不要直接读写缓存介质。
//
// 诊断端通过 List 输出已注册数据源及其策略。
package source
