// Package proxy описывает узкий интерфейс удалённых объектов.
//
// Удалённые блоки и вычислители доступны только по имени метода:
//
//	obj.Call(ctx, "evalProperty", "freq", "fc+100")
//
// Остальной код типизирован относительно Environment, Object и Topology
// и не зависит от транспорта. Реализации:
//   - internal/local — окружение в текущем процессе
//   - internal/mq    — окружение в удалённом процессе через RabbitMQ
//
// Любая ошибка удалённого вызова возвращается как *RemoteError.
package proxy
