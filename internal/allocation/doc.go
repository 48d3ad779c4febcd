// Package allocation 实现名额分配的纯计算部分：需求表、容量表与按优先级轮次的贪心求解。
//
// 包内不做任何 IO。相同输入（需求、容量、并列排序规则）总是得到逐字节相同的输出，
// 持久化、加锁与阶段校验由 service 层负责。
package allocation
