// Package biz 提供 exambot 的业务逻辑层。
//
// 该包采用分层架构，将业务逻辑拆分为以下组件：
//   - DirectoryReader: 递归读取 Data 目录并抽取文本
//   - SentenceSplitter: 按 token 预算和句子边界切分文本
//   - IndexManager: 加载已持久化的索引，或者构建并持久化新索引
//   - Retriever / Generator: 向量检索与答案生成
//   - QueryEngine: 组合检索、生成与缓存
//   - ChatSession: 聊天回调，维护问答历史
//   - QueryCache: 基于 Redis 的查询结果缓存
package biz
