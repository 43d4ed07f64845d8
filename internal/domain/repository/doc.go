// Package repository define los tipos de dominio del login classlink y las
// interfaces de acceso a datos que consumen loginflow y upgrade.
//
// Las implementaciones viven en internal/store (adapters sobre un record store
// genérico: memoria, postgres o sqlite).
package repository
