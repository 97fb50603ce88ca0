// Package processors определяет контракт подключаемых процессоров
// генерации данных, их реестр и два внутренних процессора
// оркестрации: подготовку границы (BoundarySetup) и финализацию
// журнала provenance (ProvenanceWriter).
//
// Пользовательские процессоры живут в подпакете core и регистрируются
// в реестре при старте процесса.
package processors
