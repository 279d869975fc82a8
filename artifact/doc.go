// Package artifact 负责模型产物的持久化：Identity Codec、模型权重与元数据。
//
// # 存储格式
//
// 一个产物由三部分组成，三者必须同时存在且相互一致：
//
//	codec.json     用户/物品词表（按下标排列的 ID 列表）
//	model.gob.gz   gob 编码后 gzip 压缩的模型参数
//	metadata.json  词表大小、网络结构、权重 SHA-256 校验和
//
// 加载时不会重新拟合词表；任一部分缺失、无法解码、校验和不符，
// 或元数据与词表/模型形状不一致，都返回 CORRUPT_ARTIFACT。
//
// # 后端
//
// FileRepository 把三部分写入同一目录（先写临时目录再改名）；
// StoreRepository 把三部分写入 core.Store 的三个 key（单次 BatchSet）。
package artifact
