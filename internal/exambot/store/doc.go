// Package store 提供 exambot 的向量存储层。
//
// 该包定义了向量存储的接口抽象和两种实现：
//   - ChromemStore: 基于 chromem-go 的嵌入式持久化索引，默认后端
//   - MilvusStore: 基于 Milvus 的服务端向量库
package store
